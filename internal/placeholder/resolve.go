package placeholder

// Lookup returns the answer recorded for a placeholder name, if any.
type Lookup func(name string) (string, bool)

// ResolveReferences expands ${name} references inside question text using
// answers that have already been given. Unanswered references stay literal so
// the reader can see what is still open. Resolution is a single pass; a
// resolved value is never scanned for further references, so mutually
// referencing questions cannot loop.
//
// This is for question display only and must not be applied to a document body.
func ResolveReferences(question string, lookup Lookup) string {
	if lookup == nil || !Contains(question) {
		return question
	}
	return tokenRe.ReplaceAllStringFunc(question, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if name == "" {
			return tok
		}
		if v, ok := lookup(name); ok {
			return v
		}
		return tok
	})
}

// MapLookup adapts a name->value map to a Lookup.
func MapLookup(m map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}
