// Package normalize holds the closed vocabularies used to pull structured
// attributes out of free-text source fields. The lists are data, not control
// flow: new regions or competitors extend them through configuration without
// touching the extraction logic.
package normalize

import (
	"regexp"
	"strings"
)

var storagePattern = regexp.MustCompile(`\d+\s?(TB|GB|MB)`)

type Vocabulary struct {
	Conditions []string
	Colors     []string
}

// DefaultVocabulary covers the refurbished-device market this pipeline was
// built for. First keyword found wins, so more specific entries come first.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Conditions: []string{
			"Brand New",
			"As New",
			"Like New",
			"Excellent",
			"Very Good",
			"Good",
			"Fair",
			"Refurbished",
			"Used",
		},
		Colors: []string{
			"Midnight Green",
			"Space Grey",
			"Space Gray",
			"Space Black",
			"Rose Gold",
			"Sierra Blue",
			"Pacific Blue",
			"Graphite",
			"Midnight",
			"Starlight",
			"Titanium",
			"Black",
			"White",
			"Silver",
			"Gold",
			"Blue",
			"Green",
			"Red",
			"Purple",
			"Pink",
			"Yellow",
			"Orange",
		},
	}
}

// Extend appends configured keywords; duplicates are harmless because the
// first match always wins.
func (v Vocabulary) Extend(conditions, colors []string) Vocabulary {
	v.Conditions = append(v.Conditions, conditions...)
	v.Colors = append(v.Colors, colors...)
	return v
}

// ExtractStorage finds a capacity token like "256GB" or "1 TB" in s. Empty
// result means the attribute stays absent, never guessed.
func ExtractStorage(s string) string {
	return storagePattern.FindString(s)
}

// ExtractCondition returns the first condition keyword contained in s.
// Containment is case-sensitive: source titles capitalize these tokens the
// same way the vocabulary does, and loosening this produced false positives
// ("good" inside "Goodyear" style strings).
func (v Vocabulary) ExtractCondition(s string) string {
	return firstContained(s, v.Conditions)
}

// ExtractColor returns the first color keyword contained in s.
func (v Vocabulary) ExtractColor(s string) string {
	return firstContained(s, v.Colors)
}

func firstContained(s string, keywords []string) string {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return kw
		}
	}

	return ""
}
