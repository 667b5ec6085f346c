// SPDX-License-Identifier: MIT
//
// Package build exposes metadata injected at link time, for example:
//
//	go build -ldflags "-X audiotools/pkg/build.name=audiotools \
//	    -X audiotools/pkg/build.version=0.3.0 \
//	    -X audiotools/pkg/build.commit=$(git rev-parse --short HEAD) \
//	    -X audiotools/pkg/build.time=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package build

import (
	"errors"
	"fmt"
)

var ErrMissingFlag = errors.New("build: link-time value not set")

// Info describes the running binary.
type Info struct {
	Name    string
	Version string
	Commit  string
	Time    string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Set by -ldflags -X.
var (
	name      string
	version   string
	commit    string
	buildTime string
)

var current = defaults()

func defaults() Info {
	return Info{Name: "audiotools", Version: "dev", Commit: "unknown", Time: "unknown"}
}

// Initialize copies the link-time values into Get's result. Every value must
// be present; on error the development defaults stay in place.
func Initialize() error {
	var missing []error
	for _, f := range []struct{ flag, value string }{
		{"name", name},
		{"version", version},
		{"commit", commit},
		{"time", buildTime},
	} {
		if f.value == "" {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingFlag, f.flag))
		}
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}

	current = Info{Name: name, Version: version, Commit: commit, Time: buildTime}
	return nil
}

// Get returns the build information, or development defaults before a
// successful Initialize.
func Get() Info {
	return current
}
