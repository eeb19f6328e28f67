package cache

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple path",
			key: CacheKey{
				Method: "GET",
				URL:    mustParse(t, "https://portfolio.example/assets/css/style.css"),
			},
			want: "GET:https://portfolio.example/assets/css/style.css",
		},
		{
			name: "root without slash",
			key: CacheKey{
				Method: "GET",
				URL:    mustParse(t, "https://portfolio.example"),
			},
			want: "GET:https://portfolio.example/",
		},
		{
			name: "fragment dropped",
			key: CacheKey{
				Method: "GET",
				URL:    mustParse(t, "https://portfolio.example/index.html#about"),
			},
			want: "GET:https://portfolio.example/index.html",
		},
		{
			name: "query kept verbatim",
			key: CacheKey{
				Method: "GET",
				URL:    mustParse(t, "https://portfolio.example/app.js?v=2&a=1"),
			},
			want: "GET:https://portfolio.example/app.js?v=2&a=1",
		},
		{
			name: "host case folded",
			key: CacheKey{
				Method: "get",
				URL:    mustParse(t, "HTTPS://Portfolio.Example/Img.JPG"),
			},
			want: "GET:https://portfolio.example/Img.JPG",
		},
		{
			name: "empty method defaults to GET",
			key: CacheKey{
				URL: mustParse(t, "https://portfolio.example/"),
			},
			want: "GET:https://portfolio.example/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://portfolio.example/form.html", nil)
	key := KeyFor(req)
	if key.String() != "POST:https://portfolio.example/form.html" {
		t.Errorf("KeyFor() = %v", key.String())
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Method: "GET",
		URL:    mustParse(t, "https://portfolio.example/assets/img/hero-bg5.png?w=1200"),
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}
