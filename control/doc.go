// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics, logging and debug introspection layer.
//
// Provides:
//   - Config with reference defaults and TOML file loading
//   - MetricsRegistry: concurrent-safe named counters with snapshots
//   - NewLogger: structured logiface logger over the stumpy JSON backend
//   - DebugProbes: named state hooks dumped on demand
package control
