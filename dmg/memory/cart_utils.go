package memory

import (
	"strings"
	"unicode"
)

// untitledPlaceholder is returned when a ROM's title field decodes to nothing
// printable (homebrew and some test ROMs leave it zeroed).
const untitledPlaceholder = "(Untitled)"

// cleanGameboyTitle decodes the cartridge header's title bytes into a
// display string: NUL padding becomes trailing whitespace (trimmed), and any
// byte that isn't a printable character when read as a Latin-1 code point is
// substituted with '?' so garbage headers don't corrupt terminal/log output.
func cleanGameboyTitle(titleBytes []byte) string {
	var b strings.Builder
	b.Grow(len(titleBytes))

	for _, raw := range titleBytes {
		switch r := rune(raw); {
		case r == 0:
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		default:
			b.WriteRune('?')
		}
	}

	title := strings.TrimSpace(b.String())
	if title == "" {
		return untitledPlaceholder
	}
	return title
}
