package model

import (
	"errors"
	"testing"
	"time"
)

// TestCrawlRequestValidate tests request validation at the input boundary.
func TestCrawlRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CrawlRequest
		wantErr error
	}{
		{
			name: "valid https request",
			req:  CrawlRequest{InitialURL: "https://example.com", MaxDepth: 2, Delay: time.Second},
		},
		{
			name: "depth above the cap is still valid",
			req:  CrawlRequest{InitialURL: "http://example.com/start", MaxDepth: 42},
		},
		{
			name:    "empty URL",
			req:     CrawlRequest{InitialURL: "  "},
			wantErr: ErrEmptyURL,
		},
		{
			name:    "ftp scheme",
			req:     CrawlRequest{InitialURL: "ftp://example.com/file"},
			wantErr: ErrUnsupportedScheme,
		},
		{
			name:    "relative URL",
			req:     CrawlRequest{InitialURL: "/just/a/path"},
			wantErr: ErrUnsupportedScheme,
		},
		{
			name:    "missing host",
			req:     CrawlRequest{InitialURL: "https:///path"},
			wantErr: ErrMissingHost,
		},
		{
			name:    "negative depth",
			req:     CrawlRequest{InitialURL: "https://example.com", MaxDepth: -1},
			wantErr: ErrNegativeDepth,
		},
		{
			name:    "negative delay",
			req:     CrawlRequest{InitialURL: "https://example.com", Delay: -time.Millisecond},
			wantErr: ErrNegativeDelay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsInputError(err) {
				t.Errorf("expected an InputError, got %T", err)
			}
		})
	}
}

// TestCrawlRequestClampedDepth tests that depth is capped at MaxCrawlDepth.
func TestCrawlRequestClampedDepth(t *testing.T) {
	t.Parallel()

	for requested, want := range map[int]int{0: 0, 1: 1, 5: 5, 6: 5, 100: 5} {
		got := CrawlRequest{MaxDepth: requested}.ClampedDepth()
		if got != want {
			t.Errorf("ClampedDepth(%d) = %d, expected %d", requested, got, want)
		}
	}
}

// TestInputErrorMessage tests the human-readable error text.
func TestInputErrorMessage(t *testing.T) {
	t.Parallel()

	err := &InputError{Field: "maxDepth", Value: "-3", Err: ErrNegativeDepth}
	want := `invalid maxDepth "-3": depth must be non-negative`
	if err.Error() != want {
		t.Errorf("got %q, expected %q", err.Error(), want)
	}
}
