package sqlparser

import "strings"

// ParseSet extracts the pieces of a SET/RESET statement the session-state
// layer needs: the setting name, its new value (empty for
// RESET), whether SET LOCAL was used, and whether this is a RESET.
func ParseSet(stmt string) (name, value string, isLocal, isReset bool) {
	tokens := tokenize(stmt)
	ids := identifierTokens(tokens)
	if len(ids) == 0 {
		return "", "", false, false
	}

	i := 0
	verb := strings.ToLower(ids[i].text)
	i++
	if verb == "reset" {
		if i < len(ids) && strings.ToLower(ids[i].text) == "all" {
			return "", "", false, true
		}
		if i < len(ids) {
			name, _ = qualifiedName(tokens, ids[i].pos)
			return name, "", false, true
		}
		return "", "", false, true
	}

	// verb == "set"
	if i < len(ids) && strings.ToLower(ids[i].text) == "local" {
		isLocal = true
		i++
	} else if i < len(ids) && strings.ToLower(ids[i].text) == "session" {
		i++
	}
	if i >= len(ids) {
		return "", "", isLocal, false
	}
	name, nameEnd := qualifiedName(tokens, ids[i].pos)

	value = extractSetValue(stmt[nameEnd:])
	return name, value, isLocal, false
}

// qualifiedName reads an identifier starting at token index pos, following
// "." separators so vendor settings like spanner.autocommit_dml_mode come
// back whole. Returns the dotted name and the byte offset just past it.
func qualifiedName(tokens []Token, pos int) (string, int) {
	name := tokens[pos].Text
	end := tokens[pos].End
	for pos+2 < len(tokens) &&
		tokens[pos+1].Kind == TokenOther && strings.TrimSpace(tokens[pos+1].Raw) == "." &&
		(tokens[pos+2].Kind == TokenIdentifier || tokens[pos+2].Kind == TokenQuotedIdentifier) {
		pos += 2
		name += "." + tokens[pos].Text
		end = tokens[pos].End
	}
	return name, end
}

// extractSetValue trims the "=" or "TO" separator and any wrapping quotes
// from the remainder of a SET statement after the setting name.
func extractSetValue(rest string) string {
	s := strings.TrimSpace(rest)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "="):
		s = s[1:]
	case strings.HasPrefix(lower, "to "), lower == "to":
		s = s[2:]
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}
	return s
}

// ParseShowName extracts the setting name from a SHOW statement.
func ParseShowName(stmt string) string {
	tokens := tokenize(stmt)
	ids := identifierTokens(tokens)
	if len(ids) < 2 {
		return ""
	}
	name, _ := qualifiedName(tokens, ids[1].pos)
	return name
}
