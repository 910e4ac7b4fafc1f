package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

var aggregateFunctions = toSet(
	"COUNT", "SUM", "AVG", "MIN", "MAX", "STDDEV", "STDDEV_POP", "STDDEV_SAMP",
	"STDEV", "STDEVP", "VARIANCE", "VAR", "VARP", "VAR_POP", "VAR_SAMP",
	"ARRAY_AGG", "STRING_AGG", "LISTAGG", "GROUP_CONCAT", "JSON_AGG", "JSONB_AGG",
	"JSON_OBJECT_AGG", "BOOL_AND", "BOOL_OR", "BIT_AND", "BIT_OR", "EVERY",
	"MEDIAN", "MODE", "PERCENTILE_CONT", "PERCENTILE_DISC", "COUNT_BIG",
	"APPROX_COUNT_DISTINCT", "ANY_VALUE",
)

var castFunctions = toSet("CAST", "TRY_CAST", "SAFE_CAST", "CONVERT", "TRY_CONVERT")

var concatFunctions = toSet("CONCAT", "CONCAT_WS")

var constantWords = toSet("NULL", "TRUE", "FALSE")

// classifyTransformation decides how an expression derives its value. The
// categories are tested in a fixed order and the first match wins, so
// CAST(a + b AS int) is a cast and SUM(CAST(x AS int)) an aggregation.
func classifyTransformation(expr []token) models.TransformationType {
	switch {
	case hasFunction(expr, aggregateFunctions):
		return models.TransformAggregated
	case hasFunction(expr, castFunctions) || hasOperator(expr, "::"):
		return models.TransformCast
	case hasFunction(expr, concatFunctions) || hasOperator(expr, "||"):
		return models.TransformConcatenated
	case hasArithmetic(expr) || hasAnyFunction(expr):
		return models.TransformCalculated
	case hasWord(expr, "CASE"):
		return models.TransformDerived
	case len(expr) == 1 && expr[0].kind == tokWord && !reserved[expr[0].upper] && !strings.HasPrefix(expr[0].text, "@"):
		return models.TransformDirect
	case isConstant(expr):
		return models.TransformConstant
	}
	return models.TransformDerived
}

func hasFunction(expr []token, names map[string]bool) bool {
	for i := 0; i+1 < len(expr); i++ {
		if expr[i].kind == tokWord && expr[i+1].kind == tokLParen && names[strings.ToUpper(lastPart(expr[i].text))] {
			return true
		}
	}
	return false
}

func hasAnyFunction(expr []token) bool {
	for i := 0; i+1 < len(expr); i++ {
		if expr[i].kind == tokWord && expr[i+1].kind == tokLParen && !nonFunctionWords[expr[i].upper] {
			return true
		}
	}
	return false
}

func hasOperator(expr []token, op string) bool {
	for _, t := range expr {
		if t.kind == tokOp && strings.Contains(t.text, op) {
			return true
		}
	}
	return false
}

func hasWord(expr []token, word string) bool {
	for _, t := range expr {
		if t.is(word) {
			return true
		}
	}
	return false
}

// hasArithmetic looks for a binary + - * / % between two operands. The '*'
// of COUNT(*) and a leading sign are not binary.
func hasArithmetic(expr []token) bool {
	for i := 1; i+1 < len(expr); i++ {
		t := expr[i]
		if t.kind != tokOp || !strings.ContainsAny(t.text, "+-*/%") || strings.Contains(t.text, "||") {
			continue
		}
		if isOperand(expr[i-1]) {
			return true
		}
	}
	return false
}

func isOperand(t token) bool {
	switch t.kind {
	case tokNumber, tokString, tokRParen:
		return true
	case tokWord:
		return !reserved[t.upper] || t.upper == "END" || constantWords[t.upper]
	}
	return false
}

// isConstant matches literals, optionally signed, and NULL/TRUE/FALSE.
func isConstant(expr []token) bool {
	if len(expr) == 0 {
		return false
	}
	for i, t := range expr {
		switch {
		case t.kind == tokNumber, t.kind == tokString:
		case t.kind == tokWord && constantWords[t.upper]:
		case t.kind == tokOp && i == 0 && (t.text == "-" || t.text == "+"):
		default:
			return false
		}
	}
	return true
}
