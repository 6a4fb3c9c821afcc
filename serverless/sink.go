package serverless

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
)

// Result is what one invocation returns to the host.
type Result struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// ResponseSink collects a response written incrementally and hands it back
// as a single Result.
type ResponseSink interface {
	SetStatus(code int)
	SetHeader(key, value string)
	AppendBody(p []byte)
	Finalize() Result
}

// BufferedSink is the ResponseSink the adapter hands to the HTTP transport.
// It also satisfies http.ResponseWriter and http.Flusher; those methods are
// the only place the transport's streaming contract meets the buffered one.
type BufferedSink struct {
	mu          sync.Mutex
	status      int
	header      http.Header
	body        bytes.Buffer
	wroteHeader bool
}

var (
	_ ResponseSink        = (*BufferedSink)(nil)
	_ http.ResponseWriter = (*BufferedSink)(nil)
	_ http.Flusher        = (*BufferedSink)(nil)
)

// NewBufferedSink returns an empty sink.
func NewBufferedSink() *BufferedSink {
	return &BufferedSink{header: http.Header{}}
}

func (s *BufferedSink) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
}

func (s *BufferedSink) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header.Set(key, value)
}

func (s *BufferedSink) AppendBody(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	s.body.Write(p)
}

// Finalize snapshots the response. Multi-valued headers are joined with
// ", " since the host format carries one value per name.
func (s *BufferedSink) Finalize() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(s.header))
	for k, v := range s.header {
		headers[k] = strings.Join(v, ", ")
	}
	return Result{StatusCode: status, Headers: headers, Body: s.body.String()}
}

// Header implements http.ResponseWriter. Changes after the first write are
// still recorded; the host receives headers only at Finalize.
func (s *BufferedSink) Header() http.Header { return s.header }

// WriteHeader implements http.ResponseWriter.
func (s *BufferedSink) WriteHeader(code int) { s.SetStatus(code) }

// Write implements http.ResponseWriter.
func (s *BufferedSink) Write(p []byte) (int, error) {
	s.AppendBody(p)
	return len(p), nil
}

// Flush implements http.Flusher. Nothing leaves the buffer before Finalize.
func (s *BufferedSink) Flush() {}
