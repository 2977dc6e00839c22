// Package scriptstack ties the tracker, optimizer, and interpreter together
// behind a small entry point. Most callers only need Run: hand it a build
// function that drives a tracker, and get back the interpreter's verdict on
// the generated script.
package scriptstack

import (
	"github.com/rs/zerolog"

	"github.com/scriptkit/scriptstack/optimize"
	"github.com/scriptkit/scriptstack/script"
	"github.com/scriptkit/scriptstack/stack"
	"github.com/scriptkit/scriptstack/vm"
)

// BuildFunc assembles a script by driving the tracker.
type BuildFunc func(*stack.Tracker) error

type config struct {
	optimize    bool
	trackerOpts []stack.Option
	vmOpts      []vm.Option
}

// Option configures a Run call.
type Option func(*config)

// WithOptimize applies the peephole optimizer to the generated script
// before execution.
func WithOptimize() Option {
	return func(c *config) {
		c.optimize = true
	}
}

// WithLogger attaches a logger to both the tracker and the interpreter.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.trackerOpts = append(c.trackerOpts, stack.WithLogger(logger))
		c.vmOpts = append(c.vmOpts, vm.WithLogger(logger))
	}
}

// Run builds a script with a fresh tracker and executes it. Build errors
// are returned directly; execution failures are reported inside the result,
// not as an error.
func Run(build BuildFunc, opts ...Option) (vm.Result, error) {
	res, _, err := RunWith(build, opts...)
	return res, err
}

// RunWith is Run but also hands back the tracker, for callers that want the
// recorded history or the generated script afterwards.
func RunWith(build BuildFunc, opts ...Option) (vm.Result, *stack.Tracker, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	t := stack.New(cfg.trackerOpts...)
	if err := build(t); err != nil {
		return vm.Result{}, t, err
	}
	s := t.Script()
	if cfg.optimize {
		s = optimize.Optimize(s)
	}
	return vm.Run(s, cfg.vmOpts...), t, nil
}

// Compile builds a script without executing it.
func Compile(build BuildFunc, opts ...Option) (script.Script, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	t := stack.New(cfg.trackerOpts...)
	if err := build(t); err != nil {
		return nil, err
	}
	s := t.Script()
	if cfg.optimize {
		s = optimize.Optimize(s)
	}
	return s, nil
}
