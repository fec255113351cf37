package main

import (
	"context"

	"github.com/rs/zerolog"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// closers releases resources in reverse order of registration.
type closers struct {
	log   zerolog.Logger
	steps []closer
}

func newClosers(log zerolog.Logger) *closers {
	return &closers{log: log}
}

func (c *closers) add(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, closer{name: name, fn: fn})
}

// close runs every step, newest first. A failing step is logged and the
// rest still run.
func (c *closers) close(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(ctx); err != nil {
			c.log.Warn().Err(err).Str("step", step.name).Msg("shutdown step failed")
		}
	}
	c.steps = nil
}
