// Package buildinfo carries version data stamped in at link time:
//
//	go build -ldflags "-X github.com/m3rciful/synthbot/core/buildinfo.Version=v1.4.0 \
//	  -X github.com/m3rciful/synthbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/synthbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func init() {
	if Commit != "" {
		return
	}
	// Unstamped builds still know their VCS revision when built from a
	// checkout.
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value[:min(len(s.Value), 7)]
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String renders "version (commit, date)", leaving out what is unknown.
func String() string {
	switch {
	case Commit == "" && Date == "":
		return Version
	case Date == "":
		return fmt.Sprintf("%s (%s)", Version, Commit)
	case Commit == "":
		return fmt.Sprintf("%s (%s)", Version, Date)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
