package dbengine

import (
	"fmt"
	"strconv"
	"strings"
)

// Format implements the engine's printf-style SQL mini-formatter: %d/%u
// (optionally widened with l/ll), %s/%S (plain substitution), and their
// quoted forms %'s/%'S which wrap the value in single quotes and double any
// interior single quote. \c escapes the next character literally.
func Format(format string, args ...any) string {
	var b strings.Builder
	argi := 0
	next := func() any {
		if argi >= len(args) {
			return nil
		}
		v := args[argi]
		argi++
		return v
	}

	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			}
		case '%':
			if i+1 >= len(runes) {
				b.WriteRune(c)
				break
			}
			i++
			quote := false
			if runes[i] == '\'' {
				quote = true
				i++
			}
			for i < len(runes) && runes[i] == 'l' { // skip length modifiers
				i++
			}
			if i >= len(runes) {
				break
			}
			switch runes[i] {
			case 'd', 'u':
				b.WriteString(formatInt(next()))
			case 's', 'S':
				writeString(&b, formatString(next()), quote)
			case '%':
				b.WriteByte('%')
			default:
				b.WriteByte('%')
				b.WriteRune(runes[i])
			}
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func formatInt(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint:
		return strconv.FormatUint(uint64(n), 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return "0"
	}
}

func formatString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func writeString(b *strings.Builder, s string, quote bool) {
	if !quote {
		b.WriteString(s)
		return
	}
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(s, "'", "''"))
	b.WriteByte('\'')
}
