package lib

import (
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/path", "https-example-com-path"},
		{"HTTP://WWW.Example.COM", "http-www-example-com"},
		{"plain", "plain"},
	}
	for _, test := range tests {
		result := Slugify(test.input)
		if result != test.expected {
			t.Errorf("Slugify(%q) = %q; expected %q", test.input, result, test.expected)
		}
	}
}

func TestSlugifyFilename(t *testing.T) {
	long := "https://really-long-subdomain.example.com/some/very/long/path/segment"
	result := SlugifyFilename(long, 20)
	if len(result) > 20 {
		t.Errorf("expected length <= 20, got %d (%q)", len(result), result)
	}
	if SlugifyFilename("https://example.com", 150) != "https-example-com" {
		t.Error()
	}
}
