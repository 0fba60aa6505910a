// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/docdelta/internal/version.Version=v0.3.0"
//
// Version doubles as the tool version recorded in every build record, so a
// new release always invalidates incremental reuse.
package version

import "fmt"

var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the metadata for --version output.
func String() string {
	return fmt.Sprintf("docdelta %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
