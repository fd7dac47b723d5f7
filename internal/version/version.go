// Package version exposes build metadata injected at link time.
package version

// Set via -ldflags "-X github.com/plainview-io/plainview/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a single-line human-readable version string.
func Info() string {
	return "plainview " + Version + " (" + Commit + ", built " + Date + ")"
}

// Map returns the build metadata for health endpoints.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
