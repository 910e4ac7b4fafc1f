package pii

import "math"

// Band is a confidence interval on the 0-100 scale.
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Bands maps a match rate to a confidence. Rates of at least 0.9 fall in
// High, at least 0.7 in Mid, anything lower in Low. Within a band the
// confidence is interpolated linearly.
type Bands struct {
	High Band `yaml:"high" json:"high"`
	Mid  Band `yaml:"mid" json:"mid"`
	Low  Band `yaml:"low" json:"low"`
}

const (
	highRate = 0.9
	midRate  = 0.7
)

// DefaultBands applies to pattern types without their own calibration.
var DefaultBands = Bands{
	High: Band{Min: 90, Max: 99},
	Mid:  Band{Min: 70, Max: 90},
	Low:  Band{Min: 60, Max: 75},
}

// Confidence returns the confidence for a match rate in [0,1], rounded to
// one decimal.
func (b Bands) Confidence(rate float64) float64 {
	rate = math.Max(0, math.Min(1, rate))
	var c float64
	switch {
	case rate >= highRate:
		c = b.High.at((rate - highRate) / (1 - highRate))
	case rate >= midRate:
		c = b.Mid.at((rate - midRate) / (highRate - midRate))
	default:
		c = b.Low.at(rate / midRate)
	}
	return math.Round(c*10) / 10
}

// IsZero reports whether no band was configured.
func (b Bands) IsZero() bool {
	return b == Bands{}
}

func (b Band) at(frac float64) float64 {
	return b.Min + (b.Max-b.Min)*frac
}
