package sql

import (
	"fmt"
	"strings"
)

// selectItem is one comma separated entry of a SELECT list, with its alias
// (if any) split off.
type selectItem struct {
	expr  []token
	alias string
	text  string
}

// splitItems splits toks on commas at depth, the way a SELECT list is
// written: a comma inside a function call never splits an expression.
func splitItems(toks []token, depth int) [][]token {
	var items [][]token
	var cur []token
	for _, t := range toks {
		if t.kind == tokComma && t.depth == depth {
			if len(cur) > 0 {
				items = append(items, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		items = append(items, cur)
	}
	return items
}

// parseSelectItem separates an expression from its alias. Recognized forms:
//   - expr AS alias
//   - expr alias
//   - alias = expr (SQL Server only)
func parseSelectItem(src string, item []token, d Dialect) selectItem {
	n := len(item)
	si := selectItem{expr: item}

	switch {
	case n >= 3 && item[n-2].is("AS") && item[n-1].kind == tokWord:
		si.alias = unquote(item[n-1].text)
		si.expr = item[:n-2]
	case d == DialectMSSQL && n >= 3 && item[0].kind == tokWord && item[1].kind == tokOp && item[1].text == "=" &&
		!strings.Contains(item[0].text, ".") && !reserved[item[0].upper]:
		si.alias = unquote(item[0].text)
		si.expr = item[2:]
	case n >= 2 && isImplicitAlias(item[n-2], item[n-1]):
		si.alias = unquote(item[n-1].text)
		si.expr = item[:n-1]
	}

	si.text = exprText(src, si.expr)
	return si
}

// isImplicitAlias reports whether last is a bare alias following prev, as in
// "COUNT(*) total" or "o.id order_id".
func isImplicitAlias(prev, last token) bool {
	if last.kind != tokWord || reserved[last.upper] || len(identifierParts(last.text)) != 1 {
		return false
	}
	switch prev.kind {
	case tokRParen, tokNumber, tokString:
		return true
	case tokWord:
		return !reserved[prev.upper] || prev.upper == "END"
	}
	return false
}

// name picks the output column name: the alias, else the bare column, else
// the function name, else column_<position>.
func (si selectItem) name(position int) string {
	if si.alias != "" {
		return si.alias
	}
	if len(si.expr) == 1 && si.expr[0].kind == tokWord && !reserved[si.expr[0].upper] {
		return lastPart(si.expr[0].text)
	}
	if len(si.expr) == 1 && isWildcard(si.expr) {
		return "*"
	}
	if len(si.expr) >= 2 && si.expr[0].kind == tokWord && si.expr[1].kind == tokLParen &&
		!nonFunctionWords[si.expr[0].upper] {
		return strings.ToLower(lastPart(si.expr[0].text))
	}
	return fmt.Sprintf("column_%d", position)
}

// isWildcard matches "*" and "alias.*".
func isWildcard(expr []token) bool {
	if len(expr) != 1 {
		return false
	}
	t := expr[0]
	return (t.kind == tokOp && t.text == "*") || (t.kind == tokWord && strings.HasSuffix(t.text, ".*"))
}

// references lists the column references of an expression in order of first
// appearance, as written ("o.amount", "status"). Function names, type names,
// variables and date-part keywords are not references.
func references(expr []token) []string {
	var refs []string
	seen := make(map[string]bool)
	for i, t := range expr {
		if t.kind != tokWord || reserved[t.upper] || strings.HasPrefix(t.text, "@") {
			continue
		}
		if i+1 < len(expr) && expr[i+1].kind == tokLParen {
			continue
		}
		if i > 0 {
			prev := expr[i-1]
			if (prev.kind == tokOp && strings.HasSuffix(prev.text, "::")) || prev.is("AS") {
				continue
			}
			if prev.kind == tokLParen && dateParts[t.upper] && i+1 < len(expr) &&
				(expr[i+1].is("FROM") || expr[i+1].kind == tokComma) {
				continue
			}
		}
		ref := strings.Join(identifierParts(t.text), ".")
		if key := strings.ToLower(ref); !seen[key] {
			seen[key] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// splitReference splits "schema.table.column" into its qualifier and column.
func splitReference(ref string) (qualifier, column string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// columnList reads a parenthesized column name list such as the one after
// INSERT INTO t.
func columnList(toks []token) []string {
	var cols []string
	for _, item := range splitItems(toks, depthOf(toks)) {
		if len(item) > 0 && item[0].kind == tokWord {
			cols = append(cols, lastPart(item[0].text))
		}
	}
	return cols
}

func depthOf(toks []token) int {
	if len(toks) == 0 {
		return 0
	}
	return toks[0].depth
}

// exprText returns the original text of toks with whitespace collapsed.
func exprText(src string, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(src[toks[0].start:toks[len(toks)-1].end]), " ")
}

func lastPart(ident string) string {
	parts := identifierParts(ident)
	return parts[len(parts)-1]
}

func unquote(ident string) string {
	return strings.Join(identifierParts(ident), ".")
}
