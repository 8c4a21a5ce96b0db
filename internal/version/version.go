package version

import "runtime/debug"

// Version is the release version. Overridden at build time via
// -ldflags "-X github.com/yukawasensei/visual-ai-agent/internal/version.Version=x.y.z".
var Version = "0.1.0"

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// Load combines the release version with VCS metadata stamped into the
// binary by the Go toolchain.
func Load() Info {
	info := Info{Version: Version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			info.Commit = s.Value[:8]
		}
	}
	return info
}
