package versions

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = "unknown"
)

// Build returns the stamped build version as a dotted version, or "" for
// development builds and stamps that are not dotted-numeric.
func Build() string {
	v := strings.TrimPrefix(strings.TrimSpace(Version), "v")
	if !IsDotted(v) {
		return ""
	}
	return v
}

func PrintVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, "deltasync - keeps a deployed script in sync with its repository")
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", "Version:", Version)
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", "Go Version:", GoVersion)
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", "Git Commit:", Commit)
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", "Built:", Date)
	_, _ = fmt.Fprintf(w, "  %-10s %s/%s\n", "OS/Arch:", runtime.GOOS, runtime.GOARCH)
}
