package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saveenergy/brofiler/pkg/types"
)

const namespace = "brofiler"

// Collector exports cycle reports as Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	rollingSuccess prometheus.Gauge
	rollingLoss    prometheus.Gauge
	snapshots      prometheus.Gauge
	inconsistent   prometheus.Gauge
	received       *prometheus.GaugeVec
	dropped        *prometheus.GaugeVec
	link           *prometheus.GaugeVec
	successRatio   *prometheus.GaugeVec
	linkKpps       *prometheus.GaugeVec
	linkMbps       *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time spent collecting, parsing and aggregating one cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		rollingSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rolling_success_ratio",
			Help:      "Mean primary-device success ratio over the session.",
		}),
		rollingLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rolling_loss_ratio",
			Help:      "Complement of the rolling success ratio.",
		}),
		snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_snapshots",
			Help:      "Snapshots collected this session.",
		}),
		inconsistent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inconsistent_samples",
			Help:      "Primary-device samples whose recvd+dropped differs from link.",
		}),
		received: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_received_packets",
			Help:      "Packets analyzed, as last reported by netstats.",
		}, []string{"device"}),
		dropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_dropped_packets",
			Help:      "Packets dropped, as last reported by netstats.",
		}, []string{"device"}),
		link: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_link_packets",
			Help:      "Packets seen on the link, as last reported by netstats.",
		}, []string{"device"}),
		successRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_success_ratio",
			Help:      "received/link of the last sample.",
		}, []string{"device"}),
		linkKpps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_kpps",
			Help:      "10s average kpps from capstats.",
		}, []string{"interface"}),
		linkMbps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_mbps",
			Help:      "10s average Mbps from capstats.",
		}, []string{"interface"}),
	}

	c.registry.MustRegister(
		c.cycles, c.cycleDuration, c.rollingSuccess, c.rollingLoss,
		c.snapshots, c.inconsistent, c.received, c.dropped, c.link,
		c.successRatio, c.linkKpps, c.linkMbps,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Report(r types.CycleReport) {
	c.cycles.WithLabelValues(string(r.Status)).Inc()
	c.cycleDuration.Observe(r.Duration.Seconds())

	if r.Failed() {
		return
	}

	c.snapshots.Set(float64(r.Snapshots))
	if r.Aggregated {
		c.rollingSuccess.Set(r.RollingSuccessRate)
		c.rollingLoss.Set(r.RollingLossRate)
		c.inconsistent.Set(float64(r.Inconsistent))
	}
	for _, s := range r.Devices {
		c.received.WithLabelValues(s.DeviceID).Set(s.Received)
		c.dropped.WithLabelValues(s.DeviceID).Set(s.Dropped)
		c.link.WithLabelValues(s.DeviceID).Set(s.LinkTotal)
		c.successRatio.WithLabelValues(s.DeviceID).Set(s.SuccessRate())
	}
	for _, l := range r.Links {
		c.linkKpps.WithLabelValues(l.InterfaceID).Set(l.Kpps)
		c.linkMbps.WithLabelValues(l.InterfaceID).Set(l.Mbps)
	}
}
