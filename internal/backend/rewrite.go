package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/plinth-dev/plinth/internal/config"
)

type placeholderStyle int

const (
	styleQuestion placeholderStyle = iota // ? — mysql, sqlite
	styleDollar                           // $1, $2, … — postgres
)

func placeholderFor(kind config.Kind) placeholderStyle {
	if kind == config.KindPostgres {
		return styleDollar
	}
	return styleQuestion
}

// expandNamed rewrites ":name" placeholders into the driver's
// positional style and returns the ordered argument list. The three
// relational drivers disagree on named-parameter support, so the
// handler presents one syntax and translates here. Text inside quoted
// strings, quoted identifiers, comments, and Postgres "::" casts is
// left untouched. A placeholder without a matching parameter is an
// error; unused parameters are ignored.
func expandNamed(query string, params map[string]any, style placeholderStyle) (string, []any, error) {
	var (
		out  strings.Builder
		args []any
	)
	out.Grow(len(query))

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(query, i, c)
			out.WriteString(query[i:end])
			i = end
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := skipLineComment(query, i)
			out.WriteString(query[i:end])
			i = end
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := skipBlockComment(query, i)
			out.WriteString(query[i:end])
			i = end
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			out.WriteString("::")
			i += 2
		case c == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			val, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("missing query parameter :%s", name)
			}
			args = append(args, val)
			if style == styleDollar {
				out.WriteByte('$')
				out.WriteString(strconv.Itoa(len(args)))
			} else {
				out.WriteByte('?')
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), args, nil
}

// skipQuoted returns the index just past a quoted region starting at i.
// Doubled quotes inside the region are treated as escapes.
func skipQuoted(query string, i int, quote byte) int {
	j := i + 1
	for j < len(query) {
		if query[j] == quote {
			if j+1 < len(query) && query[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}

func skipLineComment(query string, i int) int {
	j := i + 2
	for j < len(query) && query[j] != '\n' {
		j++
	}
	return j
}

func skipBlockComment(query string, i int) int {
	j := i + 2
	for j+1 < len(query) {
		if query[j] == '*' && query[j+1] == '/' {
			return j + 2
		}
		j++
	}
	return len(query)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
