package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the release number baked in from the VERSION file.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent on every backend request.
func UserAgent() string {
	return "EnergyDash/" + Version()
}

// agentTransport stamps UserAgent onto a copy of each request.
type agentTransport struct {
	next http.RoundTripper
}

func (t agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// callers may reuse req so the header goes on a clone
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", UserAgent())
	return t.next.RoundTrip(out)
}

// HTTPClient is an *http.Client bounded by timeout that identifies itself as
// energydash.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: agentTransport{next: http.DefaultTransport},
		Timeout:   timeout,
	}
}
