package classifier

import "testing"

func TestNormalize_Idempotence(t *testing.T) {
	inputs := []string{
		"nguuuuu",
		"đ.m/d-m/n.g.u/d  m/d:m,m",
		"Sản phẩm rất tốt, tôi rất hài lòng!",
		"n.g.u",
		"người",
		"hài lòng với dịch vụ",
	}
	for _, in := range inputs {
		once := Normalize(in).FullyNormalized
		twice := Normalize(once).FullyNormalized
		if once != twice {
			t.Errorf("normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalize_CollapsesRepeatedChars(t *testing.T) {
	got := Normalize("nguuuuu").FullyNormalized
	want := "nguu"
	if got != want {
		t.Errorf("Normalize(%q).FullyNormalized = %q, want %q", "nguuuuu", got, want)
	}
}

func TestNormalize_RemovesInterletterSeparators(t *testing.T) {
	cases := map[string]string{
		"n.g.u": "ngu",
		"d-m":   "dm",
	}
	for in, want := range cases {
		got := Normalize(in).FullyNormalized
		if got != want {
			t.Errorf("Normalize(%q).FullyNormalized = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_HomoglyphsAndLeetspeakFlagObfuscation(t *testing.T) {
	n := Normalize("ngu0") // '0' leetspeaks to 'o'
	if !n.Metadata.HasObfuscation {
		t.Fatalf("expected HasObfuscation=true for leetspeak input")
	}
	if n.Metadata.LeetspeakConversions == 0 {
		t.Errorf("expected at least one leetspeak conversion recorded")
	}

	clean := Normalize("người bình thường")
	if clean.Metadata.HasObfuscation {
		t.Errorf("expected HasObfuscation=false for plain text, got metadata=%+v", clean.Metadata)
	}
}

func TestNormalize_NoDiacriticsStripsVietnameseMarks(t *testing.T) {
	got := Normalize("đi học").NoDiacritics
	want := "di hoc"
	if got != want {
		t.Errorf("NoDiacritics = %q, want %q", got, want)
	}
}

func TestNormalize_StripsZeroWidthWithoutGap(t *testing.T) {
	got := Normalize("a​b").FullyNormalized
	if got != "ab" {
		t.Errorf("expected zero-width space to be stripped without leaving a gap, got %q", got)
	}
}
