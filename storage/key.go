package storage

import "strings"

// KeySeparator joins source and id in a composite key.
const KeySeparator = "+"

var (
	sourceEscaper   = strings.NewReplacer("%", "%25", KeySeparator, "%2B")
	sourceUnescaper = strings.NewReplacer("%2B", KeySeparator, "%25", "%")

	segmentEscaper   = strings.NewReplacer("%", "%25", ":", "%3A", "/", "%2F")
	segmentUnescaper = strings.NewReplacer("%3A", ":", "%2F", "/", "%25", "%")
)

// DeriveKey maps (source, id) to the composite key used to address play
// records and favorites.
//
// The source is escaped so it never contains the separator; the first
// separator in a key therefore always ends the source, and distinct pairs
// always produce distinct keys. Sources without '%' or '+' produce the plain
// "source+id" form.
func DeriveKey(source, id string) string {
	return sourceEscaper.Replace(source) + KeySeparator + id
}

// SplitKey reverses DeriveKey. ok is false when key contains no separator.
func SplitKey(key string) (source, id string, ok bool) {
	src, id, found := strings.Cut(key, KeySeparator)
	if !found {
		return "", "", false
	}
	return sourceUnescaper.Replace(src), id, true
}

// escapeSegment makes s safe to embed between ':' delimiters and in path-like keys.
func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

func unescapeSegment(s string) string {
	return segmentUnescaper.Replace(s)
}
