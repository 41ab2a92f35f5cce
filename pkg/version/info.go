// Package version reports build metadata of the running binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"

	mongoDriverModule = "go.mongodb.org/mongo-driver"
)

// Set with -ldflags, e.g.
// go build -ldflags="-X github.com/nimburion/apimate/pkg/version.AppVersion=v1.2.3"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info describes the build of a service.
type Info struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
	MongoDriver string `json:"mongo_driver"`
}

// Current returns the build metadata. Commit and build time fall back to the
// VCS stamp of the binary when they were not set with -ldflags.
func Current(serviceName string) Info {
	bi, _ := debug.ReadBuildInfo()
	return current(serviceName, bi)
}

func current(serviceName string, bi *debug.BuildInfo) Info {
	info := Info{
		Service:     orDefault(serviceName, Unknown),
		Version:     orDefault(AppVersion, DevelopmentVersion),
		Commit:      orDefault(GitCommit, Unknown),
		BuildTime:   orDefault(BuildTime, Unknown),
		GoVersion:   runtime.Version(),
		MongoDriver: Unknown,
	}
	if bi == nil {
		return info
	}

	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == Unknown:
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == Unknown:
			info.BuildTime = s.Value
		}
	}
	for _, dep := range bi.Deps {
		if dep.Path != mongoDriverModule {
			continue
		}
		info.MongoDriver = dep.Version
		if dep.Replace != nil {
			info.MongoDriver = dep.Replace.Version
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s, %s)", i.Service, i.Version, i.Commit, i.BuildTime, i.GoVersion)
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
