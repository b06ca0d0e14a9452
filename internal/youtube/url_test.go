package youtube_test

import (
	"errors"
	"testing"

	"dailycast/internal/services"
	"dailycast/internal/youtube"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name string
		link string
		want string
	}{
		{"watch link", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts link", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed link", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch link with extras", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"surrounding whitespace", "  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := youtube.ExtractVideoID(tc.link)
			if err != nil {
				t.Fatalf("ExtractVideoID failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractVideoIDRejectsGarbage(t *testing.T) {
	for _, link := range []string{"", "not a url", "https://example.com/watch?v=short"} {
		if _, err := youtube.ExtractVideoID(link); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", link, err)
		}
	}
}

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"PT3M20S", 200},
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT2H", 7200},
		{"P1DT1S", 86401},
		{"PT0S", 0},
	}
	for _, tc := range cases {
		got, err := youtube.ParseISO8601Duration(tc.value)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %d seconds, got %d", tc.value, tc.want, got)
		}
	}
}

func TestParseISO8601DurationRejectsMalformed(t *testing.T) {
	for _, value := range []string{"", "3m20s", "PTXS", "1:02:03"} {
		if _, err := youtube.ParseISO8601Duration(value); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", value, err)
		}
	}
}
