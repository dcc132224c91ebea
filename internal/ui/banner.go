// Package ui prints the operator-facing startup and shutdown messages.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Banner is the ASCII art banner for sitecounter
const Banner = `
     _ _                             _
 ___(_) |_ ___  ___ ___  _   _ _ __ | |_ ___ _ __
/ __| | __/ _ \/ __/ _ \| | | | '_ \| __/ _ \ '__|
\__ \ | ||  __/ (_| (_) | |_| | | | | ||  __/ |
|___/_|\__\___|\___\___/ \__,_|_| |_|\__\___|_|
`

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// StartupInfo holds configuration information to display at startup
type StartupInfo struct {
	Port         string
	IdentityMode string
	TrustProxy   bool
	RateLimit    string
	Database     string
	WebDir       string
	Timezone     string
	Metrics      bool
}

// PrintBanner prints the ASCII banner
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner)
}

// PrintStartupInfo prints a clean summary of the server configuration
func PrintStartupInfo(w io.Writer, info StartupInfo) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Server started at %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  SERVER")
	fmt.Fprintf(w, "     URL:             http://localhost:%s/\n", info.Port)
	fmt.Fprintf(w, "     API Rate Limit:  %s\n", info.RateLimit)
	if info.Metrics {
		fmt.Fprintf(w, "     Metrics:         http://localhost:%s/metrics\n", info.Port)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  TRACKING")
	fmt.Fprintf(w, "     Identity:        %s\n", BuildIdentitySummary(info.IdentityMode, info.TrustProxy))
	fmt.Fprintf(w, "     Timezone:        %s\n", info.Timezone)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  FILES")
	fmt.Fprintf(w, "     Database:        %s\n", info.Database)
	fmt.Fprintf(w, "     Web root:        %s\n", info.WebDir)
	fmt.Fprintln(w)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Press Ctrl+C to stop the server")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// PrintShutdown prints a shutdown message
func PrintShutdown(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Server shutting down gracefully...")
	fmt.Fprintln(w, rule)
}

// PrintShutdownComplete prints a final shutdown message
func PrintShutdownComplete(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  ✓ Server stopped successfully")
	fmt.Fprintln(w)
}

// PrintError prints a formatted error message
func PrintError(w io.Writer, message string, err error) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  ❌ ERROR: %s\n", message)
	if err != nil {
		fmt.Fprintf(w, "     %v\n", err)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// BuildRateLimitSummary creates a summary string for rate limiting
func BuildRateLimitSummary(requestsPerSec, burst int) string {
	return fmt.Sprintf("%d req/sec (burst: %d)", requestsPerSec, burst)
}

// BuildIdentitySummary describes the identity strategy
func BuildIdentitySummary(mode string, trustProxy bool) string {
	switch mode {
	case "network":
		if trustProxy {
			return "network (client address from X-Forwarded-For + user agent)"
		}
		return "network (client address + user agent)"
	default:
		return "cookie (visitor_id, 30 days)"
	}
}

// BuildDatabaseSummary describes the database file, with its size when it
// already exists
func BuildDatabaseSummary(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("SQLite - %s (new)", path)
	}
	return fmt.Sprintf("SQLite - %s (%s)", path, humanize.Bytes(uint64(info.Size())))
}
