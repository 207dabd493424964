// Package replay is the backend control plane for recording browser
// interaction traces, composing them into scenarios and user flows, and
// replaying them against a headless browser driver.
package replay

const (
	// Name identifies the service in logs and diagnostics
	Name = "replay"

	// Version is the service version reported at startup
	Version = "0.4.0"
)
