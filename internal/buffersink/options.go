package buffersink

import (
	"github.com/sirupsen/logrus"
)

type options struct {
	name             string
	logger           *logrus.Entry
	observer         Observer
	warningThreshold uint
	maxQueued        int
}

func defaultOptions(def Definition) options {
	return options{
		name:             def.Name,
		logger:           logrus.WithField("component", "buffersink"),
		observer:         nopObserver{},
		warningThreshold: DefaultWarningThreshold,
	}
}

// Option configures a Sink.
type Option func(*options)

// WithName sets the instance name shown in diagnostics. Defaults to the filter name.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger injects the logger used for diagnostics.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer for queue activity.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithWarningThreshold sets the queue length of the first backlog warning.
// Zero disables warnings.
func WithWarningThreshold(n uint) Option {
	return func(o *options) { o.warningThreshold = n }
}

// WithMaxQueued caps the queue. Frames arriving at a full queue are dropped
// with ErrOutOfMemory. Zero, the default, never caps.
func WithMaxQueued(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueued = n
		}
	}
}
