package types

import "time"

type DeviceSnapshot struct {
	Cycle       int                `json:"cycle"`
	CollectedAt time.Time          `json:"collected_at"`
	Samples     []DeviceStatSample `json:"samples"`
}

func (s DeviceSnapshot) Len() int {
	return len(s.Samples)
}

// Primary returns the first device reported by the source.
func (s DeviceSnapshot) Primary() (DeviceStatSample, bool) {
	if len(s.Samples) == 0 {
		return DeviceStatSample{}, false
	}
	return s.Samples[0], true
}

func (s DeviceSnapshot) Lookup(deviceID string) (DeviceStatSample, bool) {
	for _, sample := range s.Samples {
		if sample.DeviceID == deviceID {
			return sample, true
		}
	}
	return DeviceStatSample{}, false
}

// Inconsistent counts samples whose counters fail Confirm.
func (s DeviceSnapshot) Inconsistent() int {
	n := 0
	for _, sample := range s.Samples {
		if !sample.Confirm() {
			n++
		}
	}
	return n
}

type LinkSnapshot struct {
	Cycle       int              `json:"cycle"`
	CollectedAt time.Time        `json:"collected_at"`
	Samples     []LinkStatSample `json:"samples"`
}

func (s LinkSnapshot) TotalKpps() float64 {
	var total float64
	for _, sample := range s.Samples {
		total += sample.Kpps
	}
	return total
}

func (s LinkSnapshot) TotalMbps() float64 {
	var total float64
	for _, sample := range s.Samples {
		total += sample.Mbps
	}
	return total
}
