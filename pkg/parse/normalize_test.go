package parse

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return u
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"LowercaseSchemeHost", "HTTPS://Example.COM/Brands", "https://example.com/Brands"},
		{"DefaultHTTPSPort", "https://example.com:443/brands", "https://example.com/brands"},
		{"DefaultHTTPPort", "http://example.com:80/brands", "http://example.com/brands"},
		{"NonDefaultPortKept", "https://example.com:8443/brands", "https://example.com:8443/brands"},
		{"TrailingSlash", "https://example.com/brands/", "https://example.com/brands"},
		{"RootSlashKept", "https://example.com/", "https://example.com/"},
		{"EmptyPath", "https://example.com", "https://example.com/"},
		{"QueryAndFragmentStripped", "https://example.com/brands?page=2#top", "https://example.com/brands"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(mustParse(t, tt.input))
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_Nil(t *testing.T) {
	if got := NormalizeURL(nil); got != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty", got)
	}
}

func TestParseAndNormalize_RequiresScheme(t *testing.T) {
	_, _, err := ParseAndNormalize("example.com/brands")
	if err == nil {
		t.Error("expected error for scheme-less URL")
	}

	norm, parsed, err := ParseAndNormalize("https://example.com/brands/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm != "https://example.com/brands" {
		t.Errorf("normalized = %q", norm)
	}
	if parsed.Host != "example.com" {
		t.Errorf("parsed host = %q", parsed.Host)
	}
}

func TestResolveAbsolute(t *testing.T) {
	page := mustParse(t, "https://example.com/brands?page=3")

	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{"Relative", "/brands/napa-500", "https://example.com/brands/napa-500"},
		{"Absolute", "https://other.com/x", "https://other.com/x"},
		{"Whitespace", "  /brands/ace  ", "https://example.com/brands/ace"},
		{"Empty", "", ""},
		{"Javascript", "javascript:void(0)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveAbsolute(page, tt.href); got != tt.expected {
				t.Errorf("ResolveAbsolute(%q) = %q, want %q", tt.href, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	page := mustParse(t, "https://example.com/brands")
	got := NormalizeIdentity(page, "/brands/Napa-500/?ref=listing")
	want := "https://example.com/brands/Napa-500"
	if got != want {
		t.Errorf("NormalizeIdentity = %q, want %q", got, want)
	}
	if got := NormalizeIdentity(nil, "/x"); got != "" {
		t.Errorf("NormalizeIdentity(nil) = %q, want empty", got)
	}
}
