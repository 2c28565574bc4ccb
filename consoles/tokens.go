package consoles

import (
	"fmt"
	"strings"
	"unicode"
)

// splitLine splits on whitespace outside of quoted strings, brackets and braces, so JSON literals stay whole.
func splitLine(line string) ([]string, error) {
	var ret []string
	var cur strings.Builder
	depth := 0
	inString := false
	escaped := false
	flush := func() {
		if cur.Len() > 0 {
			ret = append(ret, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case inString:
			cur.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		case r == '"':
			inString = true
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		case unicode.IsSpace(r) && depth <= 0:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	if inString {
		return nil, fmt.Errorf("unterminated string")
	}
	if depth > 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	flush()
	return ret, nil
}
