package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Gender is the coarse demographic signal used to prune candidates.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

var (
	maleWords   = map[string]struct{}{"m": {}, "male": {}, "man": {}, "boy": {}, "masculine": {}}
	femaleWords = map[string]struct{}{"f": {}, "female": {}, "woman": {}, "girl": {}, "feminine": {}}
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeTag lowercases a free-text tag and strips diacritics and punctuation.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(RemoveDiacritics(tag))
	return strings.Join(strings.FieldsFunc(tag, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// ParseGender reads a free-text demographic tag. Only a tag that names
// exactly one side yields a known gender; anything else is unknown.
func ParseGender(tag string) Gender {
	var male, female bool
	for _, word := range strings.Fields(NormalizeTag(tag)) {
		if _, ok := maleWords[word]; ok {
			male = true
		}
		if _, ok := femaleWords[word]; ok {
			female = true
		}
	}
	switch {
	case male && !female:
		return GenderMale
	case female && !male:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Compatible reports whether two demographic tags may describe the same person.
// Missing or ambiguous signal on either side never excludes.
func Compatible(probeTag, candidateTag string) bool {
	p := ParseGender(probeTag)
	c := ParseGender(candidateTag)
	if p == GenderUnknown || c == GenderUnknown {
		return true
	}
	return p == c
}
