// File: control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed probe registry for inspecting a running reactor.

package control

import "sync"

// Gauge is one point-in-time set of integer readings sampled from a
// subsystem, keyed by what each value counts.
type Gauge map[string]int

// ProbeFunc samples one subsystem. It runs on the caller's thread;
// the reactor registers probes that read its single-threaded state,
// so sampling belongs on the reactor thread too.
type ProbeFunc func() Gauge

// DebugProbes holds named probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]ProbeFunc
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: make(map[string]ProbeFunc)}
}

// RegisterProbe inserts a named probe, replacing any previous one
// under the same name.
func (dp *DebugProbes) RegisterProbe(name string, fn ProbeFunc) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Sample runs one probe by name.
func (dp *DebugProbes) Sample(name string) (Gauge, bool) {
	dp.mu.RLock()
	fn, ok := dp.probes[name]
	dp.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return fn(), true
}

// DumpState runs every probe and collects the readings.
func (dp *DebugProbes) DumpState() map[string]Gauge {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]Gauge, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}
