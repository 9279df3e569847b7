// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X eqviewer/pkg/build.buildName=eqviewer \
//	    -X eqviewer/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds run without the flags and report "dev" placeholders.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown by the CLI.
const Description = "Inspect and equalize signals: waveform, spectrum and spectrogram views backed by a processing service"

// Info holds build-time information.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = devInfo()
)

func devInfo() Info {
	return Info{
		Name:    "eqviewer",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
}

// Initialize copies the ldflags values into the build info. Missing flags
// keep their development placeholder and are reported in the returned
// error; callers may treat that as a development build.
func Initialize() error {
	info := devInfo()
	var errs []error
	set := func(dst *string, value, flag string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = value
	}
	set(&info.Name, buildName, "BuildName")
	set(&info.Time, buildTime, "BuildTime")
	set(&info.Commit, buildCommit, "BuildCommit")
	set(&info.Version, buildVersion, "BuildVersion")

	buildInfo = info
	return errors.Join(errs...)
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}
