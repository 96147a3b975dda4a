package version

import "fmt"

// Application version information, set at build time with
// -ldflags "-X github.com/notescribe/notescribe/pkg/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
)

// String renders the version for `notescribe --version`.
func String() string {
	if Commit == "" {
		return Version
	}
	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, short)
}
