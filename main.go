// SPDX-License-Identifier: MIT
package main

import (
	"audiotools/cmd"
	applog "audiotools/internal/log"
	"audiotools/pkg/build"
)

// main runs in three phases:
//
// 1. Startup (cold path): build information, runtime settings, CLI parsing.
//
// 2. Command: file analysis runs to completion on the calling goroutine;
// the live command starts the PortAudio callback, which feeds the analysis
// pipeline until the monitor exits or a termination signal arrives.
//
// 3. Shutdown (cold path): recording, streams and transports are closed by
// the command that opened them.
func main() {
	// Development builds carry no ldflags; keep the "unknown" defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build info: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Fatalf("%v", err)
	}
}
