package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")

	t.Setenv("ETUDE_THEME", "light")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when ETUDE_THEME=light")
	}

	t.Setenv("ETUDE_THEME", "dark")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when ETUDE_THEME=dark")
	}

	t.Setenv("ETUDE_THEME", "")
	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for COLORFGBG background 15")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for COLORFGBG background 0")
	}
}

func TestRatingColor(t *testing.T) {
	for _, rating := range []string{"easy", "medium", "hard", "snooze"} {
		if RatingColor(rating) == Destructive {
			t.Errorf("rating %q mapped to the fallback color", rating)
		}
	}
	if RatingColor("bogus") != Destructive {
		t.Errorf("unknown rating should map to the fallback color")
	}
}
