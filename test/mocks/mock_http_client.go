package mocks

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// MockHTTPClient is a mock implementation of HTTPClient for testing
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)

	mu    sync.Mutex
	Calls []*http.Request
}

// NewMockHTTPClient creates a new mock HTTP client
func NewMockHTTPClient(doFunc func(req *http.Request) (*http.Response, error)) *MockHTTPClient {
	return &MockHTTPClient{
		DoFunc: doFunc,
		Calls:  []*http.Request{},
	}
}

// Do executes the mock function and captures the call
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	// Default: payment already settled
	return NewJSONResponse(http.StatusOK, `{"status":"PAID"}`, nil), nil
}

// CallCount returns the number of captured calls
func (m *MockHTTPClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears captured calls
func (m *MockHTTPClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = []*http.Request{}
}

// NewJSONResponse builds a response with a JSON body and optional extra headers
func NewJSONResponse(status int, body string, headers map[string]string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     h,
	}
}
