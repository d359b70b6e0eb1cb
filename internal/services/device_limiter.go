package services

import (
	"sync"

	"golang.org/x/time/rate"
)

// DeviceRateLimiter applies a per-device token bucket to the ingestion path
// so a misbehaving sensor cannot flood the sample store.
type DeviceRateLimiter struct {
	limiters  sync.Map // deviceID -> *rate.Limiter
	perDevice rate.Limit
	burst     int
}

// NewDeviceRateLimiter creates a limiter allowing perDevice samples/second
// with the given burst per device.
func NewDeviceRateLimiter(perDevice float64, burst int) *DeviceRateLimiter {
	if perDevice <= 0 {
		perDevice = 2
	}
	if burst <= 0 {
		burst = 10
	}
	return &DeviceRateLimiter{
		perDevice: rate.Limit(perDevice),
		burst:     burst,
	}
}

// Allow reports whether a sample from the device may be accepted now.
func (l *DeviceRateLimiter) Allow(deviceID string) bool {
	limiter, ok := l.limiters.Load(deviceID)
	if !ok {
		limiter, _ = l.limiters.LoadOrStore(deviceID, rate.NewLimiter(l.perDevice, l.burst))
	}
	return limiter.(*rate.Limiter).Allow()
}
