/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log provides the leveled logging primitives used across the
// locator packages. It mirrors the shape of vitess's own go/vt/log
// package: thin wrappers over the standard logger plus a verbosity gate,
// so callers never reach for the stdlib "log" package directly.
package log

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

// Level is a verbosity level for V-style conditional logging.
type Level int

// verbosity is the currently configured verbosity threshold.
var verbosity Level

// SetVerbosity sets the global verbosity threshold used by V().
func SetVerbosity(v Level) {
	verbosity = v
}

// Verbose gates a logging statement on the configured verbosity.
type Verbose bool

// V reports whether logging at the given verbosity level is enabled.
func V(level Level) Verbose {
	return Verbose(level <= verbosity)
}

// Infof logs at the given verbosity if enabled.
func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		std.Output(2, "I "+sprintf(format, args...))
	}
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...interface{}) {
	std.Output(2, "I "+sprintf(format, args...))
}

// Warningf logs a warning.
func Warningf(format string, args ...interface{}) {
	std.Output(2, "W "+sprintf(format, args...))
}

// Errorf logs an error without terminating the process.
func Errorf(format string, args ...interface{}) {
	std.Output(2, "E "+sprintf(format, args...))
}

// Exitf logs a fatal error and terminates the process. Reserved for
// unrecoverable startup failures, never for retryable conditions.
func Exitf(format string, args ...interface{}) {
	std.Output(2, "F "+sprintf(format, args...))
	os.Exit(1)
}
