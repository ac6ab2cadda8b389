package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"DJI_0001.JPG", "DJI_0001.JPG"},
		{"a/b\\c:d*e", "a-b-c-d-e"},
		{"what?\"<>|", "what"},
		{"  spaced  ", "spaced"},
		{"tab\there", "tabhere"},
		{"..hidden..", "hidden"},
		{"café.jpg", "café.jpg"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	decomposed := "e\u0301"
	if got := NormalizeName(decomposed); got != "\u00e9" {
		t.Fatalf("NormalizeName(%q) = %q", decomposed, got)
	}
	if got := NormalizeName("plain"); got != "plain" {
		t.Fatalf("NormalizeName(plain) = %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"Hello World", "hello_world"},
		{"__", "unknown"},
		{"Flight-07", "flight-07"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
