package bridge

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// rewriteNamed replaces :name placeholders in query with the positional
// markers of bindType and returns the names in order of appearance. String
// literals, quoted identifiers, comments, dollar-quoted bodies and ::
// casts are copied through unchanged.
func rewriteNamed(bindType int, query string) (string, []string) {
	var out strings.Builder
	out.Grow(len(query))
	var names []string

	for i := 0; i < len(query); {
		c := query[i]
		var next byte
		if i+1 < len(query) {
			next = query[i+1]
		}

		end := i + 1
		switch {
		case c == '\'':
			end = skipQuoted(query, i, isEscapeString(query, i))
		case c == '"':
			end = skipQuoted(query, i, false)
		case c == '-' && next == '-':
			end = skipLineComment(query, i)
		case c == '/' && next == '*':
			end = skipBlockComment(query, i)
		case c == '$':
			if e, ok := skipDollarQuoted(query, i); ok {
				end = e
			}
		case c == ':' && next == ':':
			for end < len(query) && query[end] == ':' {
				end++
			}
		case c == ':' && isNameStart(next) && (i == 0 || !isNameChar(query[i-1])):
			end = i + 2
			for end < len(query) && isNameChar(query[end]) {
				end++
			}
			names = append(names, query[i+1:end])
			out.WriteString(placeholder(bindType, len(names)))
			i = end
			continue
		}
		out.WriteString(query[i:end])
		i = end
	}
	return out.String(), names
}

func placeholder(bindType, n int) string {
	switch bindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// skipQuoted returns the index just past the quoted run starting at
// query[start]. A doubled quote character is an escaped quote.
func skipQuoted(query string, start int, backslashEscapes bool) int {
	quote := query[start]
	for i := start + 1; i < len(query); i++ {
		switch query[i] {
		case '\\':
			if backslashEscapes {
				i++
			}
		case quote:
			if i+1 < len(query) && query[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(query)
}

// isEscapeString reports whether the quote at query[start] opens a
// Postgres E'...' string.
func isEscapeString(query string, start int) bool {
	if start == 0 || (query[start-1] != 'E' && query[start-1] != 'e') {
		return false
	}
	return start == 1 || !isNameChar(query[start-2])
}

func skipLineComment(query string, start int) int {
	if n := strings.IndexByte(query[start:], '\n'); n >= 0 {
		return start + n + 1
	}
	return len(query)
}

// skipBlockComment handles nested /* */ comments.
func skipBlockComment(query string, start int) int {
	depth := 0
	for i := start; i+1 < len(query); {
		switch query[i : i+2] {
		case "/*":
			depth++
			i += 2
		case "*/":
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(query)
}

// skipDollarQuoted matches a $tag$...$tag$ body starting at query[start].
func skipDollarQuoted(query string, start int) (int, bool) {
	if start > 0 && isNameChar(query[start-1]) {
		return 0, false
	}
	j := start + 1
	if j < len(query) && isNameStart(query[j]) {
		for j < len(query) && isNameChar(query[j]) {
			j++
		}
	}
	if j >= len(query) || query[j] != '$' {
		return 0, false
	}
	tag := query[start : j+1]
	n := strings.Index(query[j+1:], tag)
	if n < 0 {
		return len(query), true
	}
	return j + 1 + n + len(tag), true
}

func isNameStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || ('0' <= c && c <= '9')
}
