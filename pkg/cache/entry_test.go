package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEntry_MatchesVary(t *testing.T) {
	tests := []struct {
		name        string
		vary        string
		varyHeaders http.Header
		reqHeaders  http.Header
		want        bool
	}{
		{
			name: "no vary header",
			want: true,
		},
		{
			name:        "matching accept-language",
			vary:        "Accept-Language",
			varyHeaders: http.Header{"Accept-Language": []string{"de"}},
			reqHeaders:  http.Header{"Accept-Language": []string{"de"}},
			want:        true,
		},
		{
			name:        "different accept-language",
			vary:        "accept-language",
			varyHeaders: http.Header{"Accept-Language": []string{"de"}},
			reqHeaders:  http.Header{"Accept-Language": []string{"en"}},
			want:        false,
		},
		{
			name:       "accept-encoding ignored",
			vary:       "Accept-Encoding",
			reqHeaders: http.Header{"Accept-Encoding": []string{"gzip, deflate, br"}},
			want:       true,
		},
		{
			name:       "absent on both sides",
			vary:       "Accept-Language",
			reqHeaders: http.Header{},
			want:       true,
		},
		{
			name: "vary star never matches",
			vary: "*",
			want: false,
		},
		{
			name:        "list with one mismatch",
			vary:        "Accept, Accept-Language",
			varyHeaders: http.Header{"Accept": []string{"text/html"}, "Accept-Language": []string{"de"}},
			reqHeaders:  http.Header{"Accept": []string{"text/html"}},
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{Headers: http.Header{}, VaryHeaders: tt.varyHeaders}
			if tt.vary != "" {
				entry.Headers.Set("Vary", tt.vary)
			}
			req := httptest.NewRequest(http.MethodGet, "https://portfolio.example/", nil)
			for k, vv := range tt.reqHeaders {
				req.Header[k] = vv
			}
			if got := entry.MatchesVary(req); got != tt.want {
				t.Errorf("MatchesVary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_NilSafety(t *testing.T) {
	var e *Entry
	if e.Size() != 0 {
		t.Error("nil entry size should be 0")
	}
	if e.MatchesVary(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("nil entry should not match")
	}
}
