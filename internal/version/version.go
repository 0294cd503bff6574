// Package version reports the sapadt build version.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/sapadt"

// buildVersion is set via -ldflags "-X pkt.systems/sapadt/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Time      string `json:"time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Read collects version details from ldflags and the embedded build info.
func Read() Info {
	info := Info{
		Module:    defaultModule,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if ok {
		if p := strings.TrimSpace(bi.Main.Path); p != "" {
			info.Module = p
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Revision = s.Value
			case "vcs.time":
				info.Time = s.Value
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(buildVersion) != "":
		info.Version = buildVersion
	case ok && bi.Main.Version != "" && bi.Main.Version != "(devel)":
		info.Version = bi.Main.Version
	default:
		info.Version = info.pseudo()
	}
	return info
}

// pseudo builds a Go-style pseudo version from the VCS stamp.
func (i Info) pseudo() string {
	if i.Revision == "" || i.Time == "" {
		return "v0.0.0-unknown"
	}
	at, err := time.Parse(time.RFC3339, i.Time)
	if err != nil {
		return "v0.0.0-unknown"
	}
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	v := "v0.0.0-" + at.UTC().Format("20060102150405") + "-" + rev
	if i.Modified {
		v += "+dirty"
	}
	return v
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

// Module returns the module path.
func Module() string {
	return Read().Module
}

// UserAgent is sent with every request to the SAP system, for example
// "sapadt/v1.2.0 (go1.25.1; linux/amd64)".
func UserAgent() string {
	i := Read()
	return "sapadt/" + i.Version + " (" + i.GoVersion + "; " + i.Platform + ")"
}
