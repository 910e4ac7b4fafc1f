package sql

import (
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
	tokOp
)

// token is a lexical unit of a statement. Offsets index into both the
// original text and its masked copy, which have the same length.
type token struct {
	kind  tokenKind
	text  string
	upper string
	start int
	end   int
	// depth is the parenthesis nesting level; a '(' and its matching ')'
	// share a depth and the tokens between them are one level deeper.
	depth int
}

func (t token) is(keywords ...string) bool {
	if t.kind != tokWord {
		return false
	}
	for _, kw := range keywords {
		if t.upper == kw {
			return true
		}
	}
	return false
}

// mask returns a copy of src with comments blanked and string literal bodies
// replaced by '_', so keyword and punctuation scans never look inside them.
// Byte offsets are preserved. Dollar-quoted and MySQL double-quoted strings
// are rewritten to look like ordinary '...' literals.
func mask(src string, d Dialect) string {
	out := []byte(src)
	n := len(src)

	blank := func(from, to int) {
		for k := from; k < to; k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}
	literal := func(from, to int, terminated bool) {
		out[from] = '\''
		last := to
		if terminated {
			last = to - 1
			out[last] = '\''
		}
		for k := from + 1; k < last; k++ {
			out[k] = '_'
		}
	}

	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '-' && i+1 < n && src[i+1] == '-', c == '#' && d.hashComments():
			j := i
			for j < n && src[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case c == '/' && i+1 < n && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			end := n
			if j >= 0 {
				end = i + 2 + j + 2
			}
			blank(i, end)
			i = end
		case c == '\'' || (c == '"' && d.doubleQuotedStrings()):
			end, ok := closeQuote(src, i, c, d.backslashEscapes())
			literal(i, end, ok)
			i = end
		case c == '$' && d.dollarQuotedStrings():
			tag := dollarTag(src, i)
			if tag == "" {
				i++
				continue
			}
			j := strings.Index(src[i+len(tag):], tag)
			if j < 0 {
				literal(i, n, false)
				i = n
				continue
			}
			end := i + len(tag) + j + len(tag)
			literal(i, end, true)
			i = end
		case c == '"' || c == '`' || (c == '[' && d.bracketIdentifiers()):
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			for j < n && src[j] != closer {
				if src[j] == ';' {
					out[j] = '_'
				}
				j++
			}
			i = min(j+1, n)
		default:
			i++
		}
	}
	return string(out)
}

// closeQuote returns the offset just past the literal starting at i and
// whether it was terminated. Doubled quotes stay inside the literal.
func closeQuote(src string, i int, q byte, backslash bool) (int, bool) {
	for j := i + 1; j < len(src); j++ {
		switch {
		case backslash && src[j] == '\\':
			j++
		case src[j] == q:
			if j+1 < len(src) && src[j+1] == q {
				j++
				continue
			}
			return j + 1, true
		}
	}
	return len(src), false
}

// dollarTag returns "$tag$" (or "$$") when one starts at i.
func dollarTag(src string, i int) string {
	for j := i + 1; j < len(src); j++ {
		c := src[j]
		if c == '$' {
			return src[i : j+1]
		}
		if !(c == '_' || isLetter(c) || (j > i+1 && isDigit(c))) {
			return ""
		}
	}
	return ""
}

// splitStatements splits a script at top-level semicolons. Empty statements
// are dropped.
func splitStatements(src string, d Dialect) []string {
	m := mask(src, d)
	var out []string
	start := 0
	for i := 0; i <= len(m); i++ {
		if i < len(m) && m[i] != ';' {
			continue
		}
		if strings.TrimSpace(m[start:i]) != "" {
			out = append(out, strings.TrimSpace(src[start:i]))
		}
		start = i + 1
	}
	return out
}

// tokenize scans src, using its masked copy m for structure.
func tokenize(src, m string, d Dialect) []token {
	var toks []token
	depth := 0
	emit := func(kind tokenKind, start, end, depth int) {
		toks = append(toks, token{
			kind:  kind,
			text:  src[start:end],
			upper: strings.ToUpper(m[start:end]),
			start: start,
			end:   end,
			depth: depth,
		})
	}

	for i := 0; i < len(m); {
		c := m[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			emit(tokLParen, i, i+1, depth)
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			emit(tokRParen, i, i+1, depth)
			i++
		case c == ',':
			emit(tokComma, i, i+1, depth)
			i++
		case c == ';':
			emit(tokSemicolon, i, i+1, depth)
			i++
		case c == '\'':
			j := strings.IndexByte(m[i+1:], '\'')
			end := len(m)
			if j >= 0 {
				end = i + 1 + j + 1
			}
			emit(tokString, i, end, depth)
			i = end
		case isDigit(c) || (c == '.' && i+1 < len(m) && isDigit(m[i+1])):
			j := i + 1
			for j < len(m) && (isDigit(m[j]) || m[j] == '.' || isLetter(m[j])) {
				j++
			}
			emit(tokNumber, i, j, depth)
			i = j
		case isWordStart(c, d):
			j := scanWord(m, i, d)
			// N'...', E'...', B'...', X'...' prefixed literals
			if j-i == 1 && j < len(m) && m[j] == '\'' && strings.ContainsRune("NnEeBbXx", rune(c)) {
				k := strings.IndexByte(m[j+1:], '\'')
				end := len(m)
				if k >= 0 {
					end = j + 1 + k + 1
				}
				emit(tokString, i, end, depth)
				i = end
				continue
			}
			emit(tokWord, i, j, depth)
			i = j
		default:
			j := i
			for j < len(m) && isOpChar(m[j]) {
				j++
			}
			if j == i {
				j = i + 1
			}
			emit(tokOp, i, j, depth)
			i = j
		}
	}
	return toks
}

// scanWord consumes a possibly qualified, possibly quoted identifier such as
// db."my schema".[Order Details] or alias.*.
func scanWord(m string, i int, d Dialect) int {
	j := i
	for j < len(m) {
		c := m[j]
		switch {
		case c == '"' || c == '`' || (c == '[' && d.bracketIdentifiers()):
			closer := c
			if c == '[' {
				closer = ']'
			}
			k := strings.IndexByte(m[j+1:], closer)
			if k < 0 {
				return len(m)
			}
			j += k + 2
		case isWordChar(c):
			j++
		case c == '.' && j > i:
			if j+1 < len(m) && m[j+1] == '*' {
				return j + 2
			}
			j++
		default:
			return j
		}
	}
	return j
}

// matchParen returns the index of the ')' matching the '(' at open, or the
// last token index when the statement is unbalanced.
func matchParen(toks []token, open int) int {
	for i := open + 1; i < len(toks); i++ {
		if toks[i].kind == tokRParen && toks[i].depth == toks[open].depth {
			return i
		}
	}
	return len(toks) - 1
}

// identifierParts splits a qualified identifier on dots outside quotes and
// unquotes each part.
func identifierParts(text string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				if quote != ']' && i+1 < len(text) && text[i+1] == quote {
					cur.WriteByte(c)
					i++
					continue
				}
				quote = 0
				continue
			}
			cur.WriteByte(c)
		case c == '"' || c == '`':
			quote = c
		case c == '[':
			quote = ']'
		case c == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, cur.String())
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '$' || c == '@' || c == '#' || c >= 0x80
}

func isWordStart(c byte, d Dialect) bool {
	return isLetter(c) || c == '_' || c == '@' || c == '#' || c >= 0x80 ||
		c == '"' || c == '`' || (c == '[' && d.bracketIdentifiers())
}

func isOpChar(c byte) bool {
	return strings.IndexByte("+-*/%=<>!|:^&~?.[]{}", c) >= 0
}
