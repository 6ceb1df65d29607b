package testutil

import (
	"net/http"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a recorder for the cassette at path (without the
// .yaml extension). In recording mode requests go through realTransport,
// or http.DefaultTransport when nil. The returned func stops the recorder,
// which saves the cassette when recording.
func NewVCRRecorder(t *testing.T, path string, mode recorder.Mode, realTransport http.RoundTripper) (*recorder.Recorder, func()) {
	t.Helper()

	r, err := recorder.NewAsMode(path, mode, realTransport)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Don't match on request body for simplicity
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	stopped := false
	cleanup := func() {
		if stopped {
			return
		}
		stopped = true
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}
	t.Cleanup(cleanup)

	return r, cleanup
}

// CassettePath returns a cassette path inside a per-test temporary directory.
func CassettePath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// VCRHTTPClient returns an HTTP client configured to use the VCR recorder
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
