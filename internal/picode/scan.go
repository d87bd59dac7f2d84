package picode

import "strings"

// Scan extracts candidate picode substrings from arbitrary text. Each
// candidate runs from a 'c' through the next '@' inclusive; scanning resumes
// immediately after the terminator, so candidates never overlap. When no
// terminator remains ahead of a 'c' the rest of the text cannot hold a
// complete command and scanning stops.
//
// Candidates are not validated; pass them through Decode.
func Scan(text string) []string {
	var found []string
	s := 0
	for s < len(text) {
		c := strings.IndexByte(text[s:], 'c')
		if c < 0 {
			break
		}
		c += s
		a := strings.IndexByte(text[c:], '@')
		if a < 0 {
			break
		}
		a += c
		found = append(found, text[c:a+1])
		s = a + 1
	}
	return found
}
