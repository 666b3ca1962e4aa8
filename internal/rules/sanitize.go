package rules

import "strings"

// bannedWords are matched as case-insensitive substrings of display names.
var bannedWords = []string{
	"fuck", "shit", "bitch", "cunt", "dick", "asshole",
	"nigger", "faggot", "whore", "slut",
}

const vowels = "aeiouAEIOU"

// SanitizeName trims and truncates a display name to MaxNameLen runes. If
// the result contains a banned word, every vowel is replaced with '*' and
// the starred form is kept as the canonical name. Idempotent.
func SanitizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if r := []rune(name); len(r) > MaxNameLen {
		name = string(r[:MaxNameLen])
	}
	lower := strings.ToLower(name)
	for _, w := range bannedWords {
		if strings.Contains(lower, w) {
			return starVowels(name)
		}
	}
	return name
}

func starVowels(s string) string {
	out := []rune(s)
	for i, r := range out {
		if strings.ContainsRune(vowels, r) {
			out[i] = '*'
		}
	}
	return string(out)
}
