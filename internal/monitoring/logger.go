// Package monitoring carries the pipeline's diagnostics: the package-level
// logger and the Prometheus collectors for the frame decoder.
package monitoring

import "log"

// Logf is the diagnostic logger used across the decode pipeline. It defaults
// to log.Printf; tests mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
