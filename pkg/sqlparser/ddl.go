package sqlparser

import "strings"

// ExistenceChecker resolves whether a table or index name already exists in
// the backend; the backend connection adapter implements it.
type ExistenceChecker interface {
	TableExists(name string) (bool, error)
	IndexExists(name string) (bool, error)
}

// idTok is an identifier-shaped token (TokenIdentifier or
// TokenQuotedIdentifier) together with its index into the full token slice,
// so edits can be spliced against the original source positions.
type idTok struct {
	pos  int
	text string // normalized: lowercased if unquoted, case-preserved if quoted
}

func identifierTokens(tokens []Token) []idTok {
	var ids []idTok
	for i, tok := range tokens {
		if tok.Kind == TokenIdentifier || tok.Kind == TokenQuotedIdentifier {
			ids = append(ids, idTok{pos: i, text: tok.Text})
		}
	}
	return ids
}

// edit removes the byte range [start, end) from the source.
type edit struct {
	start, end int
}

func applyEdits(sql string, edits []edit) string {
	if len(edits) == 0 {
		return sql
	}
	var b strings.Builder
	prev := 0
	for _, e := range edits {
		b.WriteString(sql[prev:e.start])
		prev = e.end
	}
	b.WriteString(sql[prev:])
	return b.String()
}

// Translate rewrites one DDL statement into backend-acceptable form,
// stripping `IF [NOT] EXISTS` (resolved via checker into either a
// no-op skip or a plain pass-through) and the `CONSTRAINT pk_<table>`
// wrapping around a primary-key clause. skip=true means the statement is a
// no-op sentinel and must not be sent to the backend.
func Translate(sql string, checker ExistenceChecker) (out string, skip bool, err error) {
	tokens := tokenize(sql)
	ids := identifierTokens(tokens)
	if len(ids) < 2 {
		return sql, false, nil
	}

	var edits []edit

	switch {
	case ids[0].text == "create" && ids[1].text == "table":
		skip, e, err := stripCreateIfNotExists(tokens, ids, 2, checker.TableExists)
		if err != nil {
			return "", false, err
		}
		if skip {
			return "", true, nil
		}
		if e != nil {
			edits = append(edits, *e)
		}
		edits = append(edits, stripPrimaryKeyConstraints(tokens, ids, tableNameAt(ids, 2))...)

	case ids[0].text == "create" && (ids[1].text == "index" || (ids[1].text == "unique" && len(ids) > 2 && ids[2].text == "index")):
		nameIdx := 2
		if ids[1].text == "unique" {
			nameIdx = 3
		}
		skip, e, err := stripCreateIfNotExists(tokens, ids, nameIdx, checker.IndexExists)
		if err != nil {
			return "", false, err
		}
		if skip {
			return "", true, nil
		}
		if e != nil {
			edits = append(edits, *e)
		}

	case ids[0].text == "drop" && ids[1].text == "table":
		skip, e, err := stripDropIfExists(tokens, ids, 2, checker.TableExists)
		if err != nil {
			return "", false, err
		}
		if skip {
			return "", true, nil
		}
		if e != nil {
			edits = append(edits, *e)
		}

	case ids[0].text == "drop" && ids[1].text == "index":
		skip, e, err := stripDropIfExists(tokens, ids, 2, checker.IndexExists)
		if err != nil {
			return "", false, err
		}
		if skip {
			return "", true, nil
		}
		if e != nil {
			edits = append(edits, *e)
		}

	default:
		return sql, false, nil
	}

	return applyEdits(sql, edits), false, nil
}

// stripCreateIfNotExists looks for "if not exists" immediately following
// ids[afterIdx-1] (i.e. starting at ids[afterIdx]) and, when present,
// resolves existence: if the object already exists the statement becomes a
// no-op; otherwise the "if not exists " text is removed.
func stripCreateIfNotExists(tokens []Token, ids []idTok, afterIdx int, exists func(string) (bool, error)) (skip bool, e *edit, err error) {
	if afterIdx+2 >= len(ids) || ids[afterIdx].text != "if" || ids[afterIdx+1].text != "not" || ids[afterIdx+2].text != "exists" {
		return false, nil, nil
	}
	nameIdx := afterIdx + 3
	if nameIdx >= len(ids) {
		return false, nil, nil
	}
	ok, err := exists(ids[nameIdx].text)
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	start := tokens[ids[afterIdx].pos].Start
	end := tokens[ids[nameIdx].pos].Start
	return false, &edit{start: start, end: end}, nil
}

// stripDropIfExists mirrors stripCreateIfNotExists for `DROP ... IF EXISTS`:
// no-op when the object is already missing, otherwise strip "if exists ".
func stripDropIfExists(tokens []Token, ids []idTok, afterIdx int, exists func(string) (bool, error)) (skip bool, e *edit, err error) {
	if afterIdx+1 >= len(ids) || ids[afterIdx].text != "if" || ids[afterIdx+1].text != "exists" {
		return false, nil, nil
	}
	nameIdx := afterIdx + 2
	if nameIdx >= len(ids) {
		return false, nil, nil
	}
	ok, err := exists(ids[nameIdx].text)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return true, nil, nil
	}
	start := tokens[ids[afterIdx].pos].Start
	end := tokens[ids[nameIdx].pos].Start
	return false, &edit{start: start, end: end}, nil
}

// tableNameAt returns the table-name identifier immediately after "create
// table" or "create table if not exists", whichever applies.
func tableNameAt(ids []idTok, afterIdx int) string {
	if afterIdx+2 < len(ids) && ids[afterIdx].text == "if" && ids[afterIdx+1].text == "not" && ids[afterIdx+2].text == "exists" {
		afterIdx += 3
	}
	if afterIdx >= len(ids) {
		return ""
	}
	return ids[afterIdx].text
}

// stripPrimaryKeyConstraints finds every `CONSTRAINT <name> PRIMARY KEY`
// sequence in a CREATE TABLE statement's identifier stream and, when <name>
// case-insensitively equals "pk_<table>", emits an edit removing
// "CONSTRAINT <name> " while leaving "PRIMARY KEY (...)" untouched.
func stripPrimaryKeyConstraints(tokens []Token, ids []idTok, table string) []edit {
	want := "pk_" + strings.ToLower(table)
	var edits []edit
	for i := 0; i+3 < len(ids); i++ {
		if ids[i].text != "constraint" {
			continue
		}
		nameTok := ids[i+1]
		if ids[i+2].text != "primary" || ids[i+3].text != "key" {
			continue
		}
		if strings.ToLower(nameTok.text) != want {
			continue
		}
		start := tokens[ids[i].pos].Start
		end := tokens[ids[i+2].pos].Start
		edits = append(edits, edit{start: start, end: end})
	}
	return edits
}
