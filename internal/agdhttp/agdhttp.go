// Package agdhttp contains common constants, functions, and types for working
// with HTTP.
package agdhttp

import "github.com/AdguardTeam/AdGuardCB/internal/version"

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextPlain       = "text/plain"
)

// userAgent is the cached User-Agent string for AdGuardCB.
var userAgent = version.Name() + "/" + version.Version()

// UserAgent returns the ID of the service as a User-Agent string.  It is also
// used as the value of the Server HTTP header.
func UserAgent() (ua string) {
	return userAgent
}
