package location

import (
	"time"

	"github.com/MrEthical07/geoAuth/geo"
)

// Default provider request intervals.
const (
	DefaultInterval        = 10 * time.Second
	DefaultFastestInterval = 5 * time.Second
	DefaultQueueSize       = 16
)

// Sample is a single location reading handed to consumers.
type Sample struct {
	Coordinate geo.Coordinate
	// Accuracy is the provider's estimated horizontal accuracy in meters.
	Accuracy float32
	// Timestamp is the fix time in epoch milliseconds.
	Timestamp int64
}

// Time returns the sample timestamp as a time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Fix is a raw reading as produced by a [Provider].
type Fix struct {
	Coordinate geo.Coordinate
	Accuracy   float32
	Time       time.Time
}

func (f *Fix) sample() *Sample {
	if f == nil {
		return nil
	}
	return &Sample{
		Coordinate: f.Coordinate,
		Accuracy:   f.Accuracy,
		Timestamp:  f.Time.UnixMilli(),
	}
}

// Request carries the update cadence asked of a provider. FastestInterval is
// also enforced locally: fixes closer together than it are dropped.
type Request struct {
	Interval        time.Duration
	FastestInterval time.Duration
}

// DefaultRequest returns the 10s / 5s request.
func DefaultRequest() Request {
	return Request{Interval: DefaultInterval, FastestInterval: DefaultFastestInterval}
}
