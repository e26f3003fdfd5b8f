// ABOUTME: Product and version identification
// ABOUTME: Reported in logs, the TUI and telemetry resources
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=...".
var Version = "0.1.0"

const (
	Product      = "micstream"
	Manufacturer = "Resonate Protocol"
)

// String returns "product/version".
func String() string {
	return Product + "/" + Version
}
