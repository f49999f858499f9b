// internal/pipeline/slug.go
package pipeline

import "strings"

// slugify turns a model-generated name into a filesystem-safe filename base:
// lowercase ASCII letters and digits, runs of anything else collapsed into a
// single hyphen. Returns "" when nothing usable remains.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
