// Package version reports the build version advertised by the services.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/mcp-examples/internal/version.Version=...".
var Version = "v0.1.0"
