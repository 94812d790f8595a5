package gpuparticle

import "errors"

var (
	// ErrInvalidConfig is returned by EmitterConfig.Validate and everything that validates a config.
	ErrInvalidConfig = errors.New("gpuparticle: invalid emitter config")

	// ErrNotStarted is returned when an emitter is stepped before Start.
	ErrNotStarted = errors.New("gpuparticle: emitter not started")

	// ErrClosed is returned by any call on a closed emitter.
	ErrClosed = errors.New("gpuparticle: emitter closed")
)
