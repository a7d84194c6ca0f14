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

// Package stats provides the small set of counters/gauges the locator
// registers, in the shape of vitess's own go/stats package (see
// go/vt/vtgate/buffer/variables.go's stats.NewMultiCounters usage).
package stats

import "sync"

// Counter is a monotonically increasing named counter.
type Counter struct {
	name string
	mu   sync.Mutex
	val  int64
}

// NewCounter registers and returns a new Counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name}
}

// Add increments the counter by delta.
func (c *Counter) Add(delta int64) {
	c.mu.Lock()
	c.val += delta
	c.mu.Unlock()
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// MultiCounters tracks counters keyed by a tuple of label values, mirroring
// stats.NewMultiCounters(name, help, labels) in vitess's vtgate/buffer package.
type MultiCounters struct {
	name   string
	labels []string
	mu     sync.Mutex
	counts map[string]int64
}

// NewMultiCounters registers a new label-keyed counter family.
func NewMultiCounters(name, help string, labels []string) *MultiCounters {
	return &MultiCounters{name: name, labels: labels, counts: make(map[string]int64)}
}

// Add increments the counter for the given label values.
func (m *MultiCounters) Add(labelValues []string, delta int64) {
	key := joinKey(labelValues)
	m.mu.Lock()
	m.counts[key] += delta
	m.mu.Unlock()
}

// Get returns the current value for the given label values.
func (m *MultiCounters) Get(labelValues []string) int64 {
	key := joinKey(labelValues)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func joinKey(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += "/"
		}
		out += v
	}
	return out
}

// GaugeFunc publishes a live-computed value under name.
type GaugeFunc struct {
	name string
	f    func() int64
}

// NewGaugeFunc registers a gauge backed by f.
func NewGaugeFunc(name, help string, f func() int64) *GaugeFunc {
	return &GaugeFunc{name: name, f: f}
}

// Get evaluates the gauge.
func (g *GaugeFunc) Get() int64 {
	return g.f()
}
