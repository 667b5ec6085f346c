// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"strings"
	"testing"
)

func setFlags(t *testing.T, n, v, c, bt string) {
	t.Helper()
	saved := [4]string{name, version, commit, buildTime}
	savedInfo := current
	t.Cleanup(func() {
		name, version, commit, buildTime = saved[0], saved[1], saved[2], saved[3]
		current = savedInfo
	})
	name, version, commit, buildTime = n, v, c, bt
	current = defaults()
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		flags   [4]string
		missing []string
	}{
		{"all set", [4]string{"audiotools", "v1.0.0", "abcdef123", "2025-04-13"}, nil},
		{"no name", [4]string{"", "v1.0.0", "abcdef123", "2025-04-13"}, []string{"name"}},
		{"no commit or time", [4]string{"audiotools", "v1.0.0", "", ""}, []string{"commit", "time"}},
		{"nothing", [4]string{}, []string{"name", "version", "commit", "time"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlags(t, tt.flags[0], tt.flags[1], tt.flags[2], tt.flags[3])

			err := Initialize()
			if len(tt.missing) == 0 {
				if err != nil {
					t.Fatalf("Initialize() unexpected error: %v", err)
				}
				want := Info{Name: tt.flags[0], Version: tt.flags[1], Commit: tt.flags[2], Time: tt.flags[3]}
				if got := Get(); got != want {
					t.Errorf("Get() = %+v, want %+v", got, want)
				}
				return
			}

			if !errors.Is(err, ErrMissingFlag) {
				t.Fatalf("Initialize() error = %v, want ErrMissingFlag", err)
			}
			for _, flag := range tt.missing {
				if !strings.Contains(err.Error(), ": "+flag) {
					t.Errorf("error %q does not name %q", err, flag)
				}
			}
			if got := Get(); got != defaults() {
				t.Errorf("failed Initialize changed Get() to %+v", got)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Name: "audiotools", Version: "v0.3.0", Commit: "abc", Time: "2025-04-13T10:00:00Z"}
	want := "audiotools v0.3.0 (commit abc, built 2025-04-13T10:00:00Z)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := defaults().String(); got != "audiotools dev (commit unknown, built unknown)" {
		t.Errorf("defaults().String() = %q", got)
	}
}
