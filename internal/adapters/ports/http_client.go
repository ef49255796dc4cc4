package ports

import (
	"net/http"
)

// HTTPClient is a minimal HTTP client interface for making requests
// This allows for easy mocking and testing of adapters
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Method is the closed set of HTTP verbs the provider API is called with
type Method int

const (
	MethodGet Method = iota
	MethodPost
)

// String returns the wire form of the verb
func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	default:
		return "UNKNOWN"
	}
}

// HTTPResponse represents a fully read HTTP response
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}
