package identity

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Locale is the language and timezone reported alongside the profile.
type Locale struct {
	Language string
	Timezone string
}

// DetectLocale derives the locale from the POSIX locale variables and the
// local timezone. Non-empty overrides win.
func DetectLocale(languageOverride, timezoneOverride string) Locale {
	loc := Locale{
		Language: detectLanguage(),
		Timezone: detectTimezone(),
	}
	if languageOverride != "" {
		loc.Language = canonicalLanguage(languageOverride)
	}
	if timezoneOverride != "" {
		loc.Timezone = timezoneOverride
	}
	return loc
}

func detectLanguage() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" && v != "C" && v != "POSIX" {
			return canonicalLanguage(v)
		}
	}
	return "en-US"
}

// canonicalLanguage turns "pt_BR.UTF-8" into "pt-BR".
func canonicalLanguage(raw string) string {
	raw, _, _ = strings.Cut(raw, ".")
	raw, _, _ = strings.Cut(raw, "@")
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "en-US"
	}
	return tag.String()
}

func detectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(strings.TrimPrefix(tz, ":")); err == nil {
			return strings.TrimPrefix(tz, ":")
		}
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}
