package sqlparser

import "strings"

// ParseCopy extracts the pieces of a "COPY table [(col, ...)] FROM STDIN
// [[WITH] (...)]" statement the COPY engine needs: the target
// table, an explicit column list (nil if the statement didn't give one),
// and the payload format ("text", "csv", or "binary", defaulting to
// "text"). ok is false for anything that isn't a COPY ... FROM STDIN form
// (e.g. "COPY ... TO ...", which PGAdapter-Go does not support).
func ParseCopy(stmt string) (table string, columns []string, format string, ok bool) {
	tokens := tokenize(stmt)
	ids := identifierTokens(tokens)
	if len(ids) < 2 || ids[0].text != "copy" {
		return "", nil, "", false
	}

	i := 1
	table = ids[i].text
	i++
	// Schema-qualified name ("public.orders"): take the table, drop the
	// schema, matching TableExists/IndexExists' bare-name existence checks.
	if i < len(ids) && isQualifierDot(tokens, ids[i-1], ids[i]) {
		table = ids[i].text
		i++
	}

	fromIdx := -1
	for k := i; k < len(ids); k++ {
		if ids[k].text == "from" {
			fromIdx = k
			break
		}
	}
	if fromIdx < 0 || fromIdx+1 >= len(ids) || ids[fromIdx+1].text != "stdin" {
		return "", nil, "", false
	}

	if fromIdx > i {
		columns = make([]string, 0, fromIdx-i)
		for _, id := range ids[i:fromIdx] {
			columns = append(columns, id.text)
		}
	}

	format = "text"
	for k := fromIdx + 2; k < len(ids); k++ {
		switch ids[k].text {
		case "format":
			if k+1 < len(ids) {
				format = ids[k+1].text
			}
		case "csv", "binary", "text":
			format = ids[k].text
		}
	}

	return table, columns, format, true
}

// isQualifierDot reports whether a '.' appears between two adjacent
// identifier tokens in the original source, i.e. they form one
// dotted "schema.name" reference rather than two separate names.
func isQualifierDot(tokens []Token, a, b idTok) bool {
	if b.pos != a.pos+2 {
		return false
	}
	return strings.TrimSpace(tokens[a.pos+1].Raw) == "."
}
