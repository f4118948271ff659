// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package specsim

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// controllerOptions holds configuration for NewController, resolved from a
// slice of Option values via the functional-options pattern.
type controllerOptions struct {
	logger        *Logger
	faultLimiter  *catrate.Limiter
	transitionLog int
}

// Option configures a Controller instance.
type Option interface {
	applyController(*controllerOptions) error
}

type optionImpl struct {
	fn func(*controllerOptions) error
}

func (o *optionImpl) applyController(opts *controllerOptions) error {
	return o.fn(opts)
}

// WithLogger overrides the Controller's logger (default: the package-level
// logger installed via SetLogger, or a disabled logger that writes nothing
// if none was set).
func WithLogger(l *Logger) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithFaultRateLimit bounds how often fault-storm log lines are emitted per
// category (typically the fault's error class), using go-catrate's layered
// windows: e.g. {time.Second: 1, time.Minute: 20} allows one immediately,
// then throttles to 20/minute sustained.
func WithFaultRateLimit(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.faultLimiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithTransitionLogCapacity overrides the ring-buffered transition log's
// retention (default 4096 entries; 0 disables the log entirely).
func WithTransitionLogCapacity(n int) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		if n < 0 {
			n = 0
		}
		opts.transitionLog = n
		return nil
	}}
}

// resolveControllerOptions applies opts over the default configuration.
func resolveControllerOptions(opts []Option) (*controllerOptions, error) {
	cfg := &controllerOptions{
		logger:        getGlobalLogger(),
		faultLimiter:  catrate.NewLimiter(map[time.Duration]int{time.Second: 1, time.Minute: 20}),
		transitionLog: 4096,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyController(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
