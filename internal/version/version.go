// Package version holds build-time version information for retrospec.
package version

// Overridden at build time, e.g.
// go build -ldflags "-X retrospec/internal/version.Version=1.2.0 -X retrospec/internal/version.Commit=abc123"
var (
	// Version is the semantic version of retrospec
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the version, with a short commit suffix when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns the multi-line version banner printed by `retrospec version`.
func Full() string {
	return "retrospec " + Version + "\n" +
		"commit: " + Commit + "\n" +
		"built:  " + BuildDate
}
