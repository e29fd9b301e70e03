// Copyright 2019 Jorn Friedrich Dreyer
// Modified 2021 Serhii Mikhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger defines an implementation of the github.com/go-logr/logr
// interfaces built on top of zerolog (github.com/rs/zerolog).
package logger

import (
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"
)

const (
	debugVerbosity = 1
	traceVerbosity = 8
	timeFormat     = "2006-01-02 15:04:05.000"
)

// globalV is the highest verbosity that is written. Error logs ignore it.
var globalV int32

// GlobalConfig sets the verbosity shared by every logger of the process.
type GlobalConfig struct {
	V int `mapstructure:"v"`
	// Level is a level name, see LevelToV. It takes precedence over V when set.
	Level string `mapstructure:"level"`
}

// Verbosity returns the verbosity selected by c.
func (c GlobalConfig) Verbosity() int {
	if c.Level != "" {
		return LevelToV(c.Level)
	}
	return c.V
}

// SetGlobalOptions applies c to all loggers, including existing ones.
func SetGlobalOptions(c GlobalConfig) {
	atomic.StoreInt32(&globalV, int32(c.V))
}

// Options that can be passed to NewWithOptions
type Options struct {
	// Name is an optional name of the logger
	Name string
	// Logger is an instance of zerolog, if nil a console logger on stdout is used
	Logger *zerolog.Logger
}

// New returns a logr.Logger writing to the console.
func New() logr.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a logr.Logger which is implemented by zerolog.
func NewWithOptions(opts Options) logr.Logger {
	if opts.Logger == nil {
		l := zerolog.New(consoleWriter()).Level(zerolog.TraceLevel).With().Timestamp().Logger()
		opts.Logger = &l
	}
	return logger{
		l:      opts.Logger,
		prefix: opts.Name,
	}
}

// logger is a logr.Logger that uses zerolog to log.
type logger struct {
	l         *zerolog.Logger
	verbosity int
	prefix    string
	values    []interface{}
}

func (l logger) Enabled() bool {
	return l.verbosity <= int(atomic.LoadInt32(&globalV))
}

func (l logger) Info(msg string, keysAndVals ...interface{}) {
	if !l.Enabled() {
		return
	}
	var e *zerolog.Event
	switch {
	case l.verbosity < debugVerbosity:
		e = l.l.Info()
	case l.verbosity < traceVerbosity:
		e = l.l.Debug()
	default:
		e = l.l.Trace()
	}
	l.write(e, msg, keysAndVals)
}

func (l logger) Error(err error, msg string, keysAndVals ...interface{}) {
	l.write(l.l.Error().Err(err), msg, keysAndVals)
}

func (l logger) write(e *zerolog.Event, msg string, keysAndVals []interface{}) {
	if e == nil {
		return
	}
	if l.prefix != "" {
		e.Str("name", l.prefix)
	}
	add(e, l.values)
	add(e, keysAndVals)
	e.Msg(msg)
}

// V returns a logger whose Info calls are written only when the global
// verbosity is at least l's verbosity plus level.
func (l logger) V(level int) logr.Logger {
	n := l.clone()
	n.verbosity += level
	return n
}

// WithName returns a new logr.Logger with the specified name appended. zerologr
// uses '/' characters to separate name elements.  Callers should not pass '/'
// in the provided name string, but this library does not actually enforce that.
func (l logger) WithName(name string) logr.Logger {
	n := l.clone()
	if len(l.prefix) > 0 {
		n.prefix = l.prefix + "/"
	}
	n.prefix += name
	return n
}

func (l logger) WithValues(kvList ...interface{}) logr.Logger {
	n := l.clone()
	n.values = append(n.values, kvList...)
	return n
}
