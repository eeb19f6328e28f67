package client

import (
	"errors"
	"io"
	"testing"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &FetchError{
				ErrorClass: ErrorClassNetwork,
				URL:        "https://portfolio.example/index.html",
				Message:    "network fetch failed",
				Err:        io.EOF,
			},
			expected: "network error fetching https://portfolio.example/index.html: network fetch failed: EOF",
		},
		{
			name: "error without wrapped error",
			err: &FetchError{
				ErrorClass: ErrorClassServer,
				URL:        "https://portfolio.example/",
				Message:    "bad gateway",
			},
			expected: "server error fetching https://portfolio.example/: bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	err := &FetchError{ErrorClass: ErrorClassNetwork, Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should see the wrapped error")
	}

	var target *FetchError
	if !errors.As(error(err), &target) {
		t.Error("errors.As should find *FetchError")
	}
}
