package cache

import "strings"

const (
	keySep    = "|"
	keyEscape = `\`
)

var keyEscaper = strings.NewReplacer(keyEscape, keyEscape+keyEscape, keySep, keyEscape+keySep)

// emptyKey is the key of an empty part list. Escaping doubles every
// backslash, so a lone one is never produced from parts.
const emptyKey = keyEscape

// Key joins parts into a cache key. Separators and escapes inside a part are
// escaped, so two different part lists never produce the same key, whatever
// their lengths. Callers lead with a namespace part and then list every
// parameter that changes the result, e.g. Key("series", subject, metric, period).
func Key(parts ...string) string {
	if len(parts) == 0 {
		return emptyKey
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, keySep)
}
