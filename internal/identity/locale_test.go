package identity

import "testing"

func TestCanonicalLanguage(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "en_US.UTF-8", want: "en-US"},
		{raw: "pt_BR", want: "pt-BR"},
		{raw: "de_DE@euro", want: "de-DE"},
		{raw: "fr", want: "fr"},
		{raw: "!!", want: "en-US"},
	}
	for _, tt := range tests {
		if got := canonicalLanguage(tt.raw); got != tt.want {
			t.Errorf("canonicalLanguage(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDetectLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "ja_JP.UTF-8")
	t.Setenv("TZ", "Asia/Tokyo")

	loc := DetectLocale("", "")
	if loc.Language != "ja-JP" {
		t.Errorf("Language = %q, want ja-JP", loc.Language)
	}
	if loc.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want Asia/Tokyo", loc.Timezone)
	}
}

func TestDetectLocale_Overrides(t *testing.T) {
	t.Setenv("LANG", "C")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")

	loc := DetectLocale("es_MX", "America/Mexico_City")
	if loc.Language != "es-MX" || loc.Timezone != "America/Mexico_City" {
		t.Errorf("DetectLocale() = %+v", loc)
	}
	if got := DetectLocale("", "").Language; got != "en-US" {
		t.Errorf("fallback language = %q, want en-US", got)
	}
}
