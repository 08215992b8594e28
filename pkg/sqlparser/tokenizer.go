// Package sqlparser implements PGAdapter's forgiving SQL front end: a
// tokenizer aware enough of PostgreSQL lexical rules to split simple-query
// batches and classify statement kind, and a DDL translator that rewrites
// `IF [NOT] EXISTS` and named primary-key constraints into the backend's
// stricter dialect. It is explicitly not a full grammar or planner.
package sqlparser

import "strings"

// TokenKind classifies one lexical token for the purposes of safely finding
// statement boundaries (unquoted semicolons) without parsing the grammar.
type TokenKind int

const (
	TokenOther TokenKind = iota
	TokenIdentifier
	TokenQuotedIdentifier
	TokenStringLiteral
	TokenDollarQuoted
	TokenLineComment
	TokenBlockComment
	TokenSemicolon
)

// Token is one lexical unit with its resolved text. For TokenIdentifier,
// Text is case-folded to lowercase; for TokenQuotedIdentifier the original
// case is preserved and the surrounding quotes are stripped.
type Token struct {
	Kind TokenKind
	Text string
	// Raw is the token exactly as it appeared in the source, quotes and all.
	Raw string
	// Start and End are byte offsets into the original source string,
	// letting callers splice the source precisely (e.g. the DDL translator
	// stripping "if not exists " without disturbing anything else).
	Start, End int
}

// tokenize scans sql into a flat token stream. Unrecognized runs of bytes
// (operators, punctuation, whitespace, numbers) are coalesced into
// TokenOther tokens verbatim, so re-joining every token's Raw reproduces
// the input exactly.
func tokenize(sql string) []Token {
	var tokens []Token
	i := 0
	n := len(sql)

	flushOther := func(start, end int) {
		if end > start {
			tokens = append(tokens, Token{Kind: TokenOther, Text: sql[start:end], Raw: sql[start:end], Start: start, End: end})
		}
	}

	otherStart := 0
	for i < n {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-':
			flushOther(otherStart, i)
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = n
			} else {
				end += i
			}
			tokens = append(tokens, Token{Kind: TokenLineComment, Text: sql[i:end], Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case c == '/' && i+1 < n && sql[i+1] == '*':
			flushOther(otherStart, i)
			end := scanBlockComment(sql, i)
			tokens = append(tokens, Token{Kind: TokenBlockComment, Text: sql[i:end], Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case c == '\'':
			flushOther(otherStart, i)
			end := scanStringLiteral(sql, i)
			tokens = append(tokens, Token{Kind: TokenStringLiteral, Text: sql[i:end], Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case (c == 'E' || c == 'e') && i+1 < n && sql[i+1] == '\'':
			flushOther(otherStart, i)
			end := scanStringLiteral(sql, i+1)
			tokens = append(tokens, Token{Kind: TokenStringLiteral, Text: sql[i:end], Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case c == '"':
			flushOther(otherStart, i)
			end := scanQuotedIdentifier(sql, i)
			tokens = append(tokens, Token{Kind: TokenQuotedIdentifier, Text: sql[i+1 : end-1], Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case c == '$' && isDollarQuoteStart(sql, i):
			flushOther(otherStart, i)
			end, tag := scanDollarQuoted(sql, i)
			tokens = append(tokens, Token{Kind: TokenDollarQuoted, Text: tag, Raw: sql[i:end], Start: i, End: end})
			i = end
			otherStart = i

		case c == ';':
			flushOther(otherStart, i)
			tokens = append(tokens, Token{Kind: TokenSemicolon, Text: ";", Raw: ";", Start: i, End: i + 1})
			i++
			otherStart = i

		case isIdentStart(c):
			flushOther(otherStart, i)
			end := i + 1
			for end < n && isIdentPart(sql[end]) {
				end++
			}
			word := sql[i:end]
			tokens = append(tokens, Token{Kind: TokenIdentifier, Text: strings.ToLower(word), Raw: word, Start: i, End: end})
			i = end
			otherStart = i

		default:
			i++
		}
	}
	flushOther(otherStart, n)
	return tokens
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// scanStringLiteral scans a single-quoted string literal starting at the
// opening quote, honoring the `''` escape, and returns the index just past
// the closing quote.
func scanStringLiteral(sql string, start int) int {
	n := len(sql)
	i := start + 1
	for i < n {
		if sql[i] == '\'' {
			if i+1 < n && sql[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		if sql[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		i++
	}
	return n
}

// scanQuotedIdentifier scans a double-quoted identifier, honoring the `""`
// escape for a literal quote character.
func scanQuotedIdentifier(sql string, start int) int {
	n := len(sql)
	i := start + 1
	for i < n {
		if sql[i] == '"' {
			if i+1 < n && sql[i+1] == '"' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

// scanBlockComment scans a /* ... */ comment, allowing nested /* */ pairs.
func scanBlockComment(sql string, start int) int {
	n := len(sql)
	depth := 0
	i := start
	for i < n {
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			depth++
			i += 2
			continue
		}
		if i+1 < n && sql[i] == '*' && sql[i+1] == '/' {
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return n
}

// isDollarQuoteStart reports whether sql[i:] begins a dollar-quote tag:
// $tag$ where tag is zero or more identifier characters.
func isDollarQuoteStart(sql string, i int) bool {
	n := len(sql)
	j := i + 1
	for j < n && isIdentPart(sql[j]) && sql[j] != '$' {
		j++
	}
	return j < n && sql[j] == '$'
}

// scanDollarQuoted scans a dollar-quoted string $tag$ ... $tag$ starting at
// the first '$', returning the end index and the quoted body text.
func scanDollarQuoted(sql string, start int) (end int, body string) {
	n := len(sql)
	j := start + 1
	for j < n && isIdentPart(sql[j]) && sql[j] != '$' {
		j++
	}
	if j >= n || sql[j] != '$' {
		return start + 1, ""
	}
	tag := sql[start : j+1]
	bodyStart := j + 1
	closeIdx := strings.Index(sql[bodyStart:], tag)
	if closeIdx < 0 {
		return n, sql[bodyStart:]
	}
	bodyEnd := bodyStart + closeIdx
	return bodyEnd + len(tag), sql[bodyStart:bodyEnd]
}

// SplitStatements splits sql at unquoted, uncommented semicolons.
// Trailing empty statements (a bare trailing semicolon, or an
// all-whitespace/comment batch) are omitted.
func SplitStatements(sql string) []string {
	tokens := tokenize(sql)
	var stmts []string
	var b strings.Builder
	for _, tok := range tokens {
		if tok.Kind == TokenSemicolon {
			if s := strings.TrimSpace(b.String()); s != "" {
				stmts = append(stmts, s)
			}
			b.Reset()
			continue
		}
		b.WriteString(tok.Raw)
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
