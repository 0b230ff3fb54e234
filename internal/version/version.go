// Package version holds the engine version stamped into plans and builds.
package version

// Version is set at build time via ldflags; the default tracks the
// current development line. Plan metadata records it so a saved plan
// can be traced back to the engine that produced it.
var Version = "0.4.0"
