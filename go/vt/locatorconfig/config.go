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

// Package locatorconfig binds the locator's runtime settings to pflag, the
// way tabletgateway.go binds its own flags via servenv.OnParseFor("vtgate",
// func(fs *pflag.FlagSet) {...}).
package locatorconfig

import (
	"time"

	"github.com/spf13/pflag"
)

// Config holds the locator's runtime tunables: the fixed backoff between
// LocateTablet's own unbounded retries, the bounded dial-retry budget the
// metadata transport uses, and a list of registry cells.
type Config struct {
	// RetryCount bounds how many times a fresh gRPC dial to a metadata
	// tablet is retried before giving up (see metaclient.GRPCObtainer).
	// LocateTablet's own retry loop is unbounded, paced only by the
	// caller's context deadline, so this knob lives at the transport
	// layer instead.
	RetryCount int
	// RefreshBackoff is the fixed delay between LocateTablet's retries.
	RefreshBackoff time.Duration
	// CellsToWatch is a comma-separated list of registry cells, mirroring
	// vitess's own cells_to_watch flag. It is bound to a flag only; no
	// component in this module reads it.
	CellsToWatch string
}

// Default returns the locator's standard tunables: a 100ms fixed backoff
// and up to two dial retries against a metadata tablet.
func Default() *Config {
	return &Config{
		RetryCount:     2,
		RefreshBackoff: 100 * time.Millisecond,
		CellsToWatch:   "",
	}
}

// RegisterFlags binds Config's fields onto fs, in the same style as
// tabletgateway.go's flag registration block.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.RetryCount, "locator_retry_count", c.RetryCount, "number of times a failed gRPC dial to a metadata tablet is retried before giving up")
	fs.DurationVar(&c.RefreshBackoff, "locator_refresh_backoff", c.RefreshBackoff, "fixed backoff between locateTablet retries")
	fs.StringVar(&c.CellsToWatch, "locator_cells_to_watch", c.CellsToWatch, "comma-separated list of registry cells (not read by any locator component)")
}
