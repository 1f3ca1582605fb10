package build

// Set at link time with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

const productName = "capture-crawler"

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// UserAgent is the default User-Agent sent by the prober and the browser.
func UserAgent() string {
	return productName + "/" + FullVersion()
}
