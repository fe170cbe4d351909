package cloud

import (
	"context"
	"sync/atomic"
)

// paired caches a positive pairing check for the life of the process.
// Un-pairing a device requires restarting whatever runs it.
var paired atomic.Bool

// IsPaired reports whether the device is paired with the backend. Any
// failure reads as "not paired" and is not cached, so the next call asks
// the backend again; once a check succeeds every later call returns true.
func IsPaired(ctx context.Context, api *DeviceAPI) bool {
	if paired.Load() {
		return true
	}

	if _, err := api.Get(ctx); err != nil {
		api.client.backend.log.Debug(ctx, "pairing check failed", "error", err)
		return false
	}

	if api.store.Get().UUID == "" {
		return false
	}
	paired.Store(true)
	return true
}
