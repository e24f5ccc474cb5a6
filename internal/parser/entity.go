package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var predefinedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": `"`,
}

// unescape replaces the predefined XML entities and character references in s.
// Any other reference is an error: XMPP forbids DTDs, so no other entity can
// be declared.
func unescape(s string) (string, error) {
	if !strings.Contains(s, "&") {
		return s, nil
	}

	var sb strings.Builder
	sb.Grow(len(s))

	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		sb.WriteString(s[:i])
		s = s[i+1:]

		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated reference &%s", ErrUnknownEntity, s)
		}
		ref := s[:end]
		s = s[end+1:]

		if strings.HasPrefix(ref, "#") {
			r, err := charRef(ref[1:])
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
			continue
		}

		repl, ok := predefinedEntities[ref]
		if !ok {
			return "", fmt.Errorf("%w: &%s;", ErrUnknownEntity, ref)
		}
		sb.WriteString(repl)
	}
}

// charRef decodes the digits of a &#N; or &#xH; reference.
func charRef(digits string) (rune, error) {
	base := 10
	if strings.HasPrefix(digits, "x") {
		base = 16
		digits = digits[1:]
	}

	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil || n == 0 || !utf8.ValidRune(rune(n)) {
		return 0, fmt.Errorf("%w: invalid character reference &#%s;", ErrUnknownEntity, digits)
	}
	return rune(n), nil
}
