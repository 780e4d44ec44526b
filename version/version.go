// Package version holds build information set at link time:
//
//	go build -ldflags "-X github.com/jackzampolin/runsheets/version.GitRelease=v0.1.0 \
//	  -X github.com/jackzampolin/runsheets/version.GitCommit=$(git rev-parse HEAD) \
//	  -X github.com/jackzampolin/runsheets/version.GitCommitDate=$(git log -1 --format=%cI)"
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, or "dev" for local builds.
	GitRelease = "dev"
	// GitCommit is the full commit hash.
	GitCommit = "unknown"
	// GitCommitDate is the commit timestamp.
	GitCommitDate = "unknown"
	// GoInfo is the toolchain and platform the binary was built for.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
