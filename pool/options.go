// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import "log/slog"

type options struct {
	logger *slog.Logger
}

// Option configures a BlockPool or TypedPool.
type Option func(*options)

// WithLogger sets the structured logger used for growth and exhaustion
// events. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func errInvalidConfig(msg string) error {
	return &configError{msg: msg}
}

type configError struct {
	msg string
}

func (e *configError) Error() string { return "pool: invalid config: " + e.msg }

func (e *configError) Unwrap() error { return ErrInvalidConfig }
