package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// These are set at link time with -ldflags "-X".
var (
	// Commit is the git commit the binary was built from.
	Commit string

	// RawTags is the comma separated list of build tags.
	RawTags string
)

const (
	appMajor = 0
	appMinor = 1
	appPatch = 0
)

// Version returns the semantic version of the binary.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}

// CommitHash returns the commit, falling back to the VCS revision stamped
// by the Go toolchain.
func CommitHash() string {
	if Commit != "" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}

	return ""
}

// GoVersion returns the toolchain version of the binary.
func GoVersion() string {
	return runtime.Version()
}

// Tags returns the build tags.
func Tags() []string {
	if RawTags == "" {
		return nil
	}

	return strings.Split(RawTags, ",")
}
