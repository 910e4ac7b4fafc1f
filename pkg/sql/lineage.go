package sql

import (
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// Edge confidence by transformation type.
var edgeConfidence = map[models.TransformationType]float64{
	models.TransformDirect:       0.95,
	models.TransformCast:         0.9,
	models.TransformAggregated:   0.85,
	models.TransformConcatenated: 0.85,
	models.TransformCalculated:   0.8,
	models.TransformDerived:      0.7,
	models.TransformConstant:     0.7,
}

const (
	wildcardConfidence = 0.6
	// unresolvedFactor scales edges whose unqualified column could come
	// from more than one table.
	unresolvedFactor = 0.8

	joinPenalty            = 0.05
	subqueryPenalty        = 0.10
	ctePenalty             = 0.05
	minStatementConfidence = 0.5
)

// ErrMultipleStatements is returned by Parse for text holding more than one
// statement.
var ErrMultipleStatements = fmt.Errorf("%w: multiple SQL statements, parse the text as a script", apperrors.ErrUnsupportedQuery)

// Parser extracts table and column lineage from SQL text. It is a
// token-level extractor, not a grammar: it recognizes the clauses that carry
// lineage and ignores the rest, so it degrades gracefully on dialect
// features it does not know.
type Parser struct {
	dialect Dialect
}

func NewParser(dialect Dialect) *Parser {
	if dialect == "" {
		dialect = DialectGeneric
	}
	return &Parser{dialect: dialect}
}

// Parse extracts lineage from a single statement. A trailing semicolon is
// allowed.
func (p *Parser) Parse(text string) (*models.ParsedLineage, error) {
	stmts, err := p.statements(text)
	if err != nil {
		return nil, err
	}
	if len(stmts) > 1 {
		return nil, ErrMultipleStatements
	}
	return p.parseStatement(stmts[0]), nil
}

// ParseScript parses every statement of a script and merges the results.
func (p *Parser) ParseScript(text string) (*models.ParsedLineage, error) {
	stmts, err := p.statements(text)
	if err != nil {
		return nil, err
	}
	parsed := make([]*models.ParsedLineage, 0, len(stmts))
	for _, stmt := range stmts {
		parsed = append(parsed, p.parseStatement(stmt))
	}
	return MergeLineage(parsed...), nil
}

func (p *Parser) statements(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("sql", "must not be empty")
	}
	stmts := splitStatements(text, p.dialect)
	if len(stmts) == 0 {
		return nil, apperrors.NewValidationError("sql", "contains no statements")
	}
	return stmts, nil
}

func (p *Parser) parseStatement(text string) *models.ParsedLineage {
	st := &statement{
		src:     text,
		dialect: p.dialect,
		toks:    tokenize(text, mask(text, p.dialect), p.dialect),
		ctes:    make(map[string]bool),
		bodies:  make(map[int]bool),
		skip:    make(map[int]bool),
		resume:  make(map[int]bool),
		aliases: make(map[string]models.LineageTable),
	}
	st.parseWith()
	st.detectType()
	st.parseTarget()
	st.parseSources()
	st.resolveTarget()
	return st.lineage()
}

// statement holds the state of one statement's analysis.
type statement struct {
	src     string
	dialect Dialect
	toks    []token

	ctes   map[string]bool
	bodies map[int]bool // token index of each CTE body's '('
	main   int          // first token after the WITH clause
	head   int          // the statement keyword

	queryType  models.QueryType
	target     *models.LineageTable
	targetCols []string
	skip       map[int]bool
	resume     map[int]bool // commas that continue a FROM list after a subquery

	sources []models.LineageTable
	aliases map[string]models.LineageTable
	joins   []pendingJoin
}

type pendingJoin struct {
	typ        string
	right      string
	cond       []token
	condText   string
	prevSource int
}

func (s *statement) tok(i int) token {
	if i < 0 || i >= len(s.toks) {
		return token{kind: tokSemicolon, depth: -1}
	}
	return s.toks[i]
}

func (s *statement) parseWith() {
	i := 0
	if !s.tok(i).is("WITH") {
		return
	}
	i++
	if s.tok(i).is("RECURSIVE") {
		i++
	}
	for i < len(s.toks) {
		name := s.tok(i)
		if name.kind != tokWord {
			break
		}
		s.ctes[strings.ToLower(unquote(name.text))] = true
		i++
		if s.tok(i).kind == tokLParen {
			i = matchParen(s.toks, i) + 1
		}
		if s.tok(i).is("AS") {
			i++
		}
		for s.tok(i).is("NOT", "MATERIALIZED") {
			i++
		}
		if s.tok(i).kind != tokLParen {
			break
		}
		s.bodies[i] = true
		i = matchParen(s.toks, i) + 1
		if s.tok(i).kind != tokComma {
			break
		}
		i++
	}
	s.main = i
}

func (s *statement) detectType() {
	s.queryType = models.QueryUnknown
	i := s.main
	for s.tok(i).kind == tokLParen {
		i++
	}
	s.head = i
	switch t := s.tok(i); {
	case t.is("SELECT"):
		s.queryType = models.QuerySelect
	case t.is("INSERT", "REPLACE"):
		s.queryType = models.QueryInsert
	case t.is("UPDATE"):
		s.queryType = models.QueryUpdate
	case t.is("CREATE"):
		s.queryType = models.QueryCreate
	case t.is("DELETE"):
		s.queryType = models.QueryDelete
	case t.is("MERGE"):
		s.queryType = models.QueryMerge
	}
}

func (s *statement) parseTarget() {
	i := s.head + 1
	switch s.queryType {
	case models.QueryInsert:
		for s.tok(i).is("INTO", "OVERWRITE", "TABLE", "IGNORE", "LOW_PRIORITY", "DELAYED", "HIGH_PRIORITY") {
			i++
		}
		i = s.setTarget(i)
		if s.tok(i).kind == tokLParen && !s.startsQuery(i) {
			end := matchParen(s.toks, i)
			s.targetCols = columnList(s.toks[i+1 : end])
		}
	case models.QueryUpdate:
		for s.tok(i).is("ONLY", "LOW_PRIORITY", "IGNORE") {
			i++
		}
		s.setTarget(i)
	case models.QueryCreate:
		for s.tok(i).is("OR", "REPLACE", "GLOBAL", "LOCAL", "TEMP", "TEMPORARY", "UNLOGGED", "MATERIALIZED", "SECURE", "RECURSIVE") {
			i++
		}
		if !s.tok(i).is("TABLE", "VIEW") {
			return
		}
		i++
		if s.tok(i).is("IF") && s.tok(i+1).is("NOT") && s.tok(i+2).is("EXISTS") {
			i += 3
		}
		i = s.setTarget(i)
		if s.tok(i).kind == tokLParen && !s.startsQuery(i) {
			end := matchParen(s.toks, i)
			if s.tok(end + 1).is("AS") {
				s.targetCols = columnList(s.toks[i+1 : end])
			}
		}
	case models.QueryDelete:
		if s.tok(i).is("FROM") {
			s.skip[i] = true
			s.setTarget(i + 1)
			return
		}
		// DELETE alias FROM table alias JOIN ...
		s.setTarget(i)
	case models.QueryMerge:
		if s.tok(i).is("INTO") {
			i++
		}
		s.setTarget(i)
	case models.QuerySelect:
		head := s.tok(s.head)
		for k := s.head + 1; k < len(s.toks); k++ {
			t := s.toks[k]
			if t.depth != head.depth {
				continue
			}
			if t.is("FROM") || t.kind == tokSemicolon {
				return
			}
			if t.is("INTO") {
				s.skip[k] = true
				s.setTarget(k + 1)
				return
			}
		}
	}
}

// setTarget records the table reference at i as the statement target and
// returns the index after it.
func (s *statement) setTarget(i int) int {
	tbl, next, ok := s.tableAt(i, true)
	if !ok {
		return i
	}
	tbl.Role = models.RoleTarget
	s.target = &tbl
	for k := i; k < next; k++ {
		s.skip[k] = true
	}
	return next
}

// resolveTarget replaces a target written as an alias (UPDATE o ... FROM
// orders o) with the aliased table.
func (s *statement) resolveTarget() {
	if s.target == nil || s.target.Schema != "" || s.target.Database != "" {
		return
	}
	key := strings.ToLower(s.target.Name)
	for _, src := range s.sources {
		if src.Alias != "" && strings.ToLower(src.Alias) == key {
			resolved := src
			resolved.Role = models.RoleTarget
			s.target = &resolved
			return
		}
	}
}

// tableAt parses "name [[AS] alias]" at i. A name followed by '(' is a
// table function unless allowParen is set (INSERT INTO t (cols)).
func (s *statement) tableAt(i int, allowParen bool) (models.LineageTable, int, bool) {
	t := s.tok(i)
	if t.kind != tokWord || reserved[t.upper] || (!allowParen && s.tok(i+1).kind == tokLParen) {
		return models.LineageTable{}, i, false
	}
	tbl := tableFromParts(identifierParts(t.text))
	tbl.Alias, i = s.aliasAt(i + 1)
	return tbl, i, true
}

// aliasAt reads an optional "[AS] alias" at i.
func (s *statement) aliasAt(i int) (string, int) {
	t := s.tok(i)
	if t.is("AS") {
		if next := s.tok(i + 1); next.kind == tokWord && !reserved[next.upper] {
			return unquote(next.text), i + 2
		}
		return "", i
	}
	if t.kind == tokWord && !reserved[t.upper] && !clauseEnd[t.upper] {
		return unquote(t.text), i + 1
	}
	return "", i
}

func tableFromParts(parts []string) models.LineageTable {
	n := len(parts)
	tbl := models.LineageTable{Name: parts[n-1]}
	if n >= 2 {
		tbl.Schema = parts[n-2]
	}
	if n >= 3 {
		tbl.Database = parts[n-3]
	}
	return tbl
}

// startsQuery reports whether the '(' at i opens a subquery.
func (s *statement) startsQuery(i int) bool {
	return s.tok(i).kind == tokLParen && s.tok(i+1).is("SELECT", "WITH")
}

func (s *statement) parseSources() {
	for i := 0; i < len(s.toks); i++ {
		if s.skip[i] {
			continue
		}
		t := s.toks[i]
		switch {
		case s.resume[i] && t.kind == tokComma:
			i = s.tableList(i+1, false) - 1
		case t.is("FROM"):
			if s.fromIntroducesTables(i) {
				i = s.tableList(i+1, false) - 1
			}
		case t.is("JOIN", "STRAIGHT_JOIN"):
			i = s.joinAt(i) - 1
		case t.is("USING") && s.queryType == models.QueryMerge && t.depth == s.tok(s.head).depth:
			i = s.tableList(i+1, true) - 1
		}
	}
}

// fromIntroducesTables rejects the FROM of EXTRACT(YEAR FROM x),
// SUBSTRING(s FROM 2) and IS DISTINCT FROM.
func (s *statement) fromIntroducesTables(i int) bool {
	if s.tok(i-1).is("DISTINCT") && s.tok(i-2).is("IS", "NOT") {
		return false
	}
	depth := s.toks[i].depth
	if depth == 0 {
		return true
	}
	for k := i - 1; k >= 0; k-- {
		if s.toks[k].kind == tokLParen && s.toks[k].depth == depth-1 {
			return s.startsQuery(k)
		}
	}
	return true
}

// tableList parses a comma separated list of table references starting at
// i and returns the index after it. Subqueries and table functions are
// stepped over; their own FROM clauses are picked up by the caller's scan.
func (s *statement) tableList(i int, single bool) int {
	for i < len(s.toks) {
		for s.tok(i).is("LATERAL", "ONLY") {
			i++
		}
		t := s.tok(i)
		switch {
		case t.kind == tokLParen && !s.startsQuery(i):
			// parenthesized join group
			return s.tableList(i+1, single)
		case t.kind == tokLParen:
			// The subquery body is scanned by the caller, which picks the
			// list up again at the comma after the alias.
			if !single {
				s.resume[s.afterAlias(matchParen(s.toks, i)+1)] = true
			}
			return i + 1
		case t.kind == tokWord && !reserved[t.upper] && s.tok(i+1).kind == tokLParen:
			end := matchParen(s.toks, i+1)
			_, i = s.aliasAt(end + 1)
			if s.tok(i).kind == tokLParen {
				i = matchParen(s.toks, i) + 1
			}
		default:
			tbl, next, ok := s.tableAt(i, false)
			if !ok {
				return i
			}
			s.addSource(tbl)
			i = next
		}
		// table hints: WITH (NOLOCK)
		if s.tok(i).is("WITH") && s.tok(i+1).kind == tokLParen {
			i = matchParen(s.toks, i+1) + 1
		}
		if single || s.tok(i).kind != tokComma {
			return i
		}
		i++
	}
	return i
}

// subqueryAlias returns the alias of the derived table opened at i.
func (s *statement) subqueryAlias(open int) string {
	alias, _ := s.aliasAt(matchParen(s.toks, open) + 1)
	return alias
}

func (s *statement) addSource(tbl models.LineageTable) {
	key := strings.ToLower(tbl.Name)
	if tbl.Schema == "" && s.ctes[key] {
		if tbl.Alias != "" {
			s.aliases[strings.ToLower(tbl.Alias)] = models.LineageTable{Name: tbl.Name}
		}
		return
	}
	tbl.Role = models.RoleSource
	s.sources = append(s.sources, tbl)
	if tbl.Alias != "" {
		s.aliases[strings.ToLower(tbl.Alias)] = tbl
	}
	for _, name := range []string{tbl.Name, tbl.QualifiedName()} {
		if _, taken := s.aliases[strings.ToLower(name)]; !taken {
			s.aliases[strings.ToLower(name)] = tbl
		}
	}
}

// joinAt parses the JOIN at i and returns the index where scanning resumes,
// which is the start of the join condition so that subqueries inside it are
// still scanned.
func (s *statement) joinAt(i int) int {
	join := pendingJoin{typ: s.joinType(i), prevSource: len(s.sources) - 1}
	j := i + 1
	if s.tok(j).is("LATERAL") {
		j++
	}

	switch t := s.tok(j); {
	case s.startsQuery(j):
		join.right = s.subqueryAlias(j)
		// resume inside the subquery
		s.joins = append(s.joins, join)
		s.joinCondition(len(s.joins)-1, s.afterAlias(matchParen(s.toks, j)+1))
		return j + 1
	case t.kind == tokWord && s.tok(j+1).kind == tokLParen && !reserved[t.upper]:
		end := matchParen(s.toks, j+1)
		join.right, j = s.aliasAt(end + 1)
	default:
		tbl, next, ok := s.tableAt(j, false)
		if !ok {
			return j
		}
		s.addSource(tbl)
		join.right = tbl.QualifiedName()
		j = next
	}
	if s.tok(j).is("WITH") && s.tok(j+1).kind == tokLParen {
		j = matchParen(s.toks, j+1) + 1
	}

	s.joins = append(s.joins, join)
	return s.joinCondition(len(s.joins)-1, j)
}

func (s *statement) afterAlias(i int) int {
	_, next := s.aliasAt(i)
	return next
}

// joinCondition reads ON ... or USING (...) at j into join idx.
func (s *statement) joinCondition(idx, j int) int {
	switch {
	case s.tok(j).is("ON"):
		end := s.conditionEnd(j + 1)
		s.joins[idx].cond = s.toks[j+1 : end]
		s.joins[idx].condText = exprText(s.src, s.toks[j+1:end])
		return j + 1
	case s.tok(j).is("USING") && s.tok(j+1).kind == tokLParen:
		end := matchParen(s.toks, j+1)
		s.joins[idx].condText = "USING " + exprText(s.src, s.toks[j+1:end+1])
		return end + 1
	}
	return j
}

// conditionEnd finds the end of a join condition starting at from.
func (s *statement) conditionEnd(from int) int {
	depth := s.tok(from - 1).depth
	for k := from; k < len(s.toks); k++ {
		t := s.toks[k]
		if t.depth < depth {
			return k
		}
		if t.depth != depth {
			continue
		}
		if t.kind == tokSemicolon || t.kind == tokComma {
			return k
		}
		if t.kind == tokWord && clauseEnd[t.upper] && s.tok(k+1).kind != tokLParen {
			return k
		}
	}
	return len(s.toks)
}

// joinType reads the modifiers in front of JOIN.
func (s *statement) joinType(i int) string {
	mods := make(map[string]bool)
	for k := i - 1; k >= 0 && joinModifiers[s.toks[k].upper] && s.toks[k].kind == tokWord; k-- {
		mods[s.toks[k].upper] = true
	}
	for _, typ := range []string{"LEFT", "RIGHT", "FULL", "CROSS"} {
		if mods[typ] {
			return typ
		}
	}
	if mods["NATURAL"] {
		return "NATURAL"
	}
	return "INNER"
}

// subqueryCount counts parenthesized SELECTs that are not CTE bodies.
func (s *statement) subqueryCount() int {
	count := 0
	for i := range s.toks {
		if s.startsQuery(i) && !s.bodies[i] {
			count++
		}
	}
	return count
}

// resolve maps a column qualifier (alias, table or schema.table) to a
// qualified table name.
func (s *statement) resolve(qualifier string) string {
	if tbl, ok := s.aliases[strings.ToLower(qualifier)]; ok {
		return tbl.QualifiedName()
	}
	if s.target != nil && (strings.EqualFold(qualifier, s.target.Name) ||
		strings.EqualFold(qualifier, s.target.Alias) || strings.EqualFold(qualifier, s.target.QualifiedName())) {
		return s.target.QualifiedName()
	}
	return qualifier
}

func (s *statement) resolveJoins() []models.JoinInfo {
	joins := make([]models.JoinInfo, 0, len(s.joins))
	for _, pj := range s.joins {
		right := pj.right
		if tbl, ok := s.aliases[strings.ToLower(right)]; ok {
			right = tbl.QualifiedName()
		}
		left := ""
		for _, ref := range references(pj.cond) {
			qualifier, _ := splitReference(ref)
			if qualifier == "" {
				continue
			}
			if resolved := s.resolve(qualifier); !strings.EqualFold(resolved, right) {
				left = resolved
				break
			}
		}
		if left == "" && pj.prevSource >= 0 {
			left = s.sources[pj.prevSource].QualifiedName()
		}
		joins = append(joins, models.JoinInfo{Left: left, Right: right, Condition: pj.condText, Type: pj.typ})
	}
	return joins
}

func (s *statement) lineage() *models.ParsedLineage {
	out := &models.ParsedLineage{
		QueryType:     s.queryType,
		Tables:        []models.LineageTable{},
		ColumnLineage: []models.ColumnLineage{},
		Joins:         s.resolveJoins(),
		Columns:       []models.SelectedColumn{},
	}

	if s.target != nil {
		out.Tables = append(out.Tables, *s.target)
	}
	seen := make(map[string]bool)
	for _, src := range s.sources {
		key := strings.ToLower(src.QualifiedName())
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Tables = append(out.Tables, src)
	}

	outputs := s.outputs()
	for _, o := range outputs {
		out.Columns = append(out.Columns, models.SelectedColumn{
			Name:               o.name,
			Expression:         o.item.text,
			TransformationType: o.transform,
			References:         references(o.item.expr),
		})
	}
	if s.target != nil {
		out.ColumnLineage = s.edges(outputs)
	}

	out.Confidence = statementConfidence(len(s.joins), s.subqueryCount(), len(s.ctes))
	return out
}

// output is one value written by the statement: a SELECT list entry, a SET
// assignment or a VALUES entry of MERGE ... INSERT.
type output struct {
	name      string
	target    string
	item      selectItem
	transform models.TransformationType
}

func (s *statement) outputs() []output {
	switch s.queryType {
	case models.QuerySelect, models.QueryInsert, models.QueryCreate:
		return s.selectOutputs()
	case models.QueryUpdate:
		return s.setOutputs(s.head + 1)
	case models.QueryMerge:
		return s.mergeOutputs()
	}
	return nil
}

// mainSelect finds the outermost SELECT after the WITH clause.
func (s *statement) mainSelect() int {
	best := -1
	for i := s.main; i < len(s.toks); i++ {
		if s.toks[i].is("SELECT") && (best < 0 || s.toks[i].depth < s.toks[best].depth) {
			best = i
		}
	}
	return best
}

func (s *statement) selectOutputs() []output {
	sel := s.mainSelect()
	if sel < 0 {
		return nil
	}
	depth := s.toks[sel].depth
	i := sel + 1
modifiers:
	for {
		switch {
		case s.tok(i).is("DISTINCT") && s.tok(i+1).is("ON") && s.tok(i+2).kind == tokLParen:
			i = matchParen(s.toks, i+2) + 1
		case s.tok(i).is("DISTINCT", "ALL", "DISTINCTROW", "SQL_CALC_FOUND_ROWS"):
			i++
		case s.tok(i).is("TOP"):
			i++
			if s.tok(i).kind == tokLParen {
				i = matchParen(s.toks, i) + 1
			} else {
				i++
			}
			for s.tok(i).is("PERCENT", "WITH", "TIES") {
				i++
			}
		default:
			break modifiers
		}
	}

	end := i
	for end < len(s.toks) {
		t := s.toks[end]
		if t.depth < depth || (t.depth == depth && (t.kind == tokSemicolon || (t.kind == tokWord && selectListEnd[t.upper]))) {
			break
		}
		end++
	}

	var outs []output
	for n, raw := range splitItems(s.toks[i:end], depth) {
		item := parseSelectItem(s.src, raw, s.dialect)
		name := item.name(n + 1)
		target := name
		if n < len(s.targetCols) {
			target = s.targetCols[n]
		}
		outs = append(outs, output{name: name, target: target, item: item, transform: classifyTransformation(item.expr)})
	}
	return outs
}

// setOutputs reads the SET list of an UPDATE (or MERGE ... UPDATE) starting
// the search at from.
func (s *statement) setOutputs(from int) []output {
	set := -1
	for k := from; k < len(s.toks); k++ {
		if s.toks[k].is("SET") {
			set = k
			break
		}
	}
	if set < 0 {
		return nil
	}
	depth := s.toks[set].depth
	end := set + 1
	for end < len(s.toks) {
		t := s.toks[end]
		if t.depth < depth || (t.depth == depth && (t.kind == tokSemicolon ||
			t.is("WHERE", "FROM", "RETURNING", "OUTPUT", "WHEN", "OPTION"))) {
			break
		}
		end++
	}

	var outs []output
	for _, raw := range splitItems(s.toks[set+1:end], depth) {
		if len(raw) < 3 || raw[0].kind != tokWord || raw[1].text != "=" {
			continue
		}
		col := lastPart(raw[0].text)
		item := selectItem{expr: raw[2:], text: exprText(s.src, raw[2:])}
		outs = append(outs, output{name: col, target: col, item: item, transform: classifyTransformation(item.expr)})
	}
	return outs
}

// mergeOutputs reads WHEN MATCHED THEN UPDATE SET and WHEN NOT MATCHED THEN
// INSERT (cols) VALUES (exprs).
func (s *statement) mergeOutputs() []output {
	var outs []output
	for k := s.head; k < len(s.toks); k++ {
		if !s.toks[k].is("THEN") {
			continue
		}
		switch {
		case s.tok(k + 1).is("UPDATE"):
			outs = append(outs, s.setOutputs(k+1)...)
		case s.tok(k+1).is("INSERT") && s.tok(k+2).kind == tokLParen:
			colEnd := matchParen(s.toks, k+2)
			cols := columnList(s.toks[k+3 : colEnd])
			if !s.tok(colEnd+1).is("VALUES") || s.tok(colEnd+2).kind != tokLParen {
				continue
			}
			valEnd := matchParen(s.toks, colEnd+2)
			values := s.toks[colEnd+3 : valEnd]
			for n, raw := range splitItems(values, depthOf(values)) {
				if n >= len(cols) {
					break
				}
				item := selectItem{expr: raw, text: exprText(s.src, raw)}
				outs = append(outs, output{name: cols[n], target: cols[n], item: item, transform: classifyTransformation(raw)})
			}
		}
	}
	return outs
}

// edges builds column lineage from the outputs into the target table.
func (s *statement) edges(outputs []output) []models.ColumnLineage {
	target := s.target.QualifiedName()

	candidates := s.distinctSources()
	if len(candidates) == 0 {
		candidates = []string{target}
	}

	var edges []models.ColumnLineage
	index := make(map[string]int)
	add := func(e models.ColumnLineage) {
		e.Confidence = round2(e.Confidence)
		key := strings.ToLower(e.SourceTable + "\x00" + e.SourceColumn + "\x00" + e.TargetTable + "\x00" + e.TargetColumn)
		if i, ok := index[key]; ok {
			edges[i].Confidence = max(edges[i].Confidence, e.Confidence)
			return
		}
		index[key] = len(edges)
		edges = append(edges, e)
	}

	for _, o := range outputs {
		if isWildcard(o.item.expr) {
			tables := candidates
			if qualifier, _ := splitReference(unquote(o.item.expr[0].text)); qualifier != "" {
				tables = []string{s.resolve(qualifier)}
			}
			for _, tbl := range tables {
				add(models.ColumnLineage{
					SourceTable:        tbl,
					SourceColumn:       models.WildcardColumn,
					TargetTable:        target,
					TargetColumn:       models.WildcardColumn,
					TransformationType: models.TransformDirect,
					Confidence:         wildcardConfidence,
				})
			}
			continue
		}

		base := edgeConfidence[o.transform]
		for _, ref := range references(o.item.expr) {
			qualifier, column := splitReference(ref)
			e := models.ColumnLineage{
				SourceColumn:       column,
				TargetTable:        target,
				TargetColumn:       o.target,
				TransformationType: o.transform,
				Confidence:         base,
			}
			switch {
			case qualifier != "":
				e.SourceTable = s.resolve(qualifier)
			case len(candidates) == 1:
				e.SourceTable = candidates[0]
			default:
				e.Confidence = base * unresolvedFactor
			}
			add(e)
		}
	}
	if edges == nil {
		return []models.ColumnLineage{}
	}
	return edges
}

func (s *statement) distinctSources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, src := range s.sources {
		name := src.QualifiedName()
		if key := strings.ToLower(name); !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

// statementConfidence starts at 1 and loses a fixed amount per join,
// subquery and CTE, never dropping below 0.5.
func statementConfidence(joins, subqueries, ctes int) float64 {
	c := 1 - joinPenalty*float64(joins) - subqueryPenalty*float64(subqueries) - ctePenalty*float64(ctes)
	return round2(max(c, minStatementConfidence))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MergeLineage combines the lineage of several statements. Tables and edges
// are deduplicated by identity, keeping the highest edge confidence; the
// merged confidence is the lowest statement confidence.
func MergeLineage(parts ...*models.ParsedLineage) *models.ParsedLineage {
	out := &models.ParsedLineage{
		QueryType:     models.QueryUnknown,
		Tables:        []models.LineageTable{},
		ColumnLineage: []models.ColumnLineage{},
		Joins:         []models.JoinInfo{},
		Columns:       []models.SelectedColumn{},
	}
	if len(parts) == 0 {
		return out
	}
	if len(parts) == 1 {
		return parts[0]
	}

	tableSeen := make(map[string]bool)
	joinSeen := make(map[string]bool)
	edgeIndex := make(map[string]int)
	out.QueryType = parts[0].QueryType
	out.Confidence = 1

	for _, p := range parts {
		if p.QueryType != out.QueryType {
			out.QueryType = models.QueryMultiple
		}
		out.Confidence = min(out.Confidence, p.Confidence)

		for _, t := range p.Tables {
			key := strings.ToLower(t.QualifiedName()) + "\x00" + string(t.Role)
			if !tableSeen[key] {
				tableSeen[key] = true
				out.Tables = append(out.Tables, t)
			}
		}
		for _, j := range p.Joins {
			key := strings.ToLower(j.Left + "\x00" + j.Right + "\x00" + j.Condition)
			if !joinSeen[key] {
				joinSeen[key] = true
				out.Joins = append(out.Joins, j)
			}
		}
		for _, e := range p.ColumnLineage {
			key := strings.ToLower(e.SourceTable + "\x00" + e.SourceColumn + "\x00" + e.TargetTable + "\x00" + e.TargetColumn)
			if i, ok := edgeIndex[key]; ok {
				if e.Confidence > out.ColumnLineage[i].Confidence {
					out.ColumnLineage[i] = e
				}
				continue
			}
			edgeIndex[key] = len(out.ColumnLineage)
			out.ColumnLineage = append(out.ColumnLineage, e)
		}
		out.Columns = append(out.Columns, p.Columns...)
	}
	return out
}
