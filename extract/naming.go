package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// datatypeTokens splits a datatype on space, hyphen, underscore and colon.
func datatypeTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == ':'
	})
}

// Labelify turns a datatype such as "geo-shape" into a node label ("GeoShape").
// Tokens are lower-cased, then capitalized and concatenated. A leading digit
// gets an underscore prefix since store labels must not start with one.
func Labelify(s string) string {
	var sb strings.Builder
	for _, token := range datatypeTokens(s) {
		token = strings.ToLower(token)
		first, size := utf8.DecodeRuneInString(token)
		sb.WriteRune(unicode.ToUpper(first))
		sb.WriteString(token[size:])
	}
	return guardDigit(sb.String())
}

// Relationify turns a datatype into a relation name with the same tokens as
// Labelify: "geo-shape" becomes "GEO_SHAPE", "wikibase:lexeme" becomes
// "WIKIBASE_LEXEME".
func Relationify(s string) string {
	tokens := datatypeTokens(s)
	for i, token := range tokens {
		tokens[i] = strings.ToUpper(token)
	}
	return guardDigit(strings.Join(tokens, "_"))
}

// PropertyRelation turns a free-text property label into a relation name:
// "instance of" becomes "INSTANCE_OF", "named after (person)" becomes
// "NAMED_AFTER_PERSON".
func PropertyRelation(label string) string {
	return guardDigit(strings.ToUpper(Slugify(label, '_')))
}

// Slugify folds diacritics, joins whitespace and hyphen runs with delim and
// drops every other character outside [A-Za-z0-9].
func Slugify(s string, delim rune) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	pending := false
	for _, r := range folded {
		switch {
		case r == '-' || unicode.IsSpace(r):
			pending = sb.Len() > 0
		case isASCIIAlnum(r) || r == delim:
			if pending {
				sb.WriteRune(delim)
				pending = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EntitySlug is the lower-case hyphenated slug stored on entity nodes.
func EntitySlug(label string) string {
	return strings.ToLower(Slugify(label, '-'))
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func guardDigit(s string) string {
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		return "_" + s
	}
	return s
}
