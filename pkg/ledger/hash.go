package ledger

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// normalizeContent lowercases and strips all whitespace so that dedup
// comparisons ignore casing and spacing differences.
func normalizeContent(content string) string {
	lowered := strings.ToLower(content)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, lowered)
}

// ContentHash computes the dedup key for a content string. The accumulator
// update is acc = acc*31 - acc + code, wrapped to a signed 32-bit integer at
// every step, over the UTF-16 code units of the normalized string. Stored
// hashes depend on this exact sequence, so the formula must not change.
func ContentHash(content string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(normalizeContent(content))) {
		h = h*31 - h + int32(u)
	}
	return h
}
