// Package textnorm folds French address text for matching: accents are
// removed, case is folded, punctuation becomes space and street-type
// abbreviations are expanded.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var abbreviations = map[string]string{
	"av":    "avenue",
	"ave":   "avenue",
	"bd":    "boulevard",
	"bld":   "boulevard",
	"bvd":   "boulevard",
	"ch":    "chemin",
	"imp":   "impasse",
	"pl":    "place",
	"r":     "rue",
	"rte":   "route",
	"sq":    "square",
	"st":    "saint",
	"ste":   "sainte",
	"fg":    "faubourg",
	"fbg":   "faubourg",
	"all":   "allee",
	"crs":   "cours",
	"qu":    "quai",
	"res":   "residence",
	"resid": "residence",
}

var caser = cases.Fold()

// Fold returns the matching form of s: "12, Bd. Saint-Michel" and
// "12 boulevard saint michel" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = caser.String(plain)

	words := strings.FieldsFunc(plain, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// PostalCode extracts the first five-digit group of s, or "".
func PostalCode(s string) string {
	run := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			run++
			if run == 5 {
				end := i + 1
				if end < len(s) && s[end] >= '0' && s[end] <= '9' {
					continue
				}
				return s[end-5 : end]
			}
			continue
		}
		run = 0
	}
	return ""
}
