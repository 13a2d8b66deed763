package normalize

import "testing"

func TestExtractStorage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"iPhone 14 Pro 256GB Space Black", "256GB"},
		{"Galaxy S24 Ultra 1 TB", "1 TB"},
		{"iPod Shuffle 512MB", "512MB"},
		{"iPhone 14 Pro Space Black", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := ExtractStorage(tc.in); got != tc.want {
			t.Errorf("ExtractStorage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractConditionFirstKeywordWins(t *testing.T) {
	v := DefaultVocabulary()

	// "As New" precedes "Good" in the vocabulary, so it must win even though
	// both are contained.
	if got := v.ExtractCondition("As New - Good Battery"); got != "As New" {
		t.Fatalf("expected %q, got %q", "As New", got)
	}
}

func TestExtractConditionIsCaseSensitive(t *testing.T) {
	v := DefaultVocabulary()

	if got := v.ExtractCondition("very good condition"); got != "" {
		t.Fatalf("lowercase text must not match, got %q", got)
	}
	if got := v.ExtractCondition("Very Good condition"); got != "Very Good" {
		t.Fatalf("expected %q, got %q", "Very Good", got)
	}
}

func TestExtractColorNoGuess(t *testing.T) {
	v := DefaultVocabulary()

	if got := v.ExtractColor("iPhone 13 128GB Excellent"); got != "" {
		t.Fatalf("expected no color, got %q", got)
	}
	if got := v.ExtractColor("iPhone 13 128GB Sierra Blue"); got != "Sierra Blue" {
		t.Fatalf("expected %q, got %q", "Sierra Blue", got)
	}
}

func TestExtendAppendsConfiguredKeywords(t *testing.T) {
	v := DefaultVocabulary().Extend([]string{"Grade A"}, []string{"Deep Purple"})

	if got := v.ExtractCondition("Grade A stock"); got != "Grade A" {
		t.Fatalf("expected extension keyword, got %q", got)
	}
	if got := v.ExtractColor("iPhone 14 Pro Deep Purple"); got != "Purple" {
		// "Purple" is in the default list and is checked before extensions;
		// the first-match-wins rule applies across the whole list.
		t.Fatalf("expected %q, got %q", "Purple", got)
	}
}
