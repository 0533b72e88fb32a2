package types

import (
	"math"
	"strings"
	"time"
)

// DeviceStatSample is one capture device's packet counters at one poll
// instant, as reported by `broctl netstats`.
type DeviceStatSample struct {
	DeviceID  string  `json:"device_id"`
	Timestamp float64 `json:"timestamp"`
	Received  float64 `json:"received"`
	Dropped   float64 `json:"dropped"`
	LinkTotal float64 `json:"link_total"`
}

// Confirm reports whether received and dropped packets add up to the
// packets seen on the link. Inconsistent samples are kept, not rejected.
func (s DeviceStatSample) Confirm() bool {
	return s.Received+s.Dropped == s.LinkTotal
}

// LossRate is dropped/link. A sample with no link traffic lost nothing.
func (s DeviceStatSample) LossRate() float64 {
	if s.LinkTotal == 0 {
		return 0
	}
	return s.Dropped / s.LinkTotal
}

// SuccessRate is received/link, defined as 1 when the link saw no packets.
func (s DeviceStatSample) SuccessRate() float64 {
	if s.LinkTotal == 0 {
		return 1
	}
	return s.Received / s.LinkTotal
}

func (s DeviceStatSample) Time() time.Time {
	sec, frac := math.Modf(s.Timestamp)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// LinkStatSample is one interface's 10s average throughput as reported by
// `broctl capstats`.
type LinkStatSample struct {
	InterfaceID string  `json:"interface_id"`
	Kpps        float64 `json:"kpps"`
	Mbps        float64 `json:"mbps"`
}

func (s LinkStatSample) Host() string {
	host, _, ok := strings.Cut(s.InterfaceID, "/")
	if !ok {
		return ""
	}
	return host
}

func (s LinkStatSample) Interface() string {
	_, iface, ok := strings.Cut(s.InterfaceID, "/")
	if !ok {
		return s.InterfaceID
	}
	return iface
}
