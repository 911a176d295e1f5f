package detector

import "strings"

// StaticSharpBooks is a fixed, priority-ordered sharp book list. The order
// matters: the divergence strategy takes the first listed book that has
// posted the outcome as its reference.
type StaticSharpBooks struct {
	ordered []string
	set     map[string]bool
}

// NewStaticSharpBooks builds a provider from a priority-ordered key list
func NewStaticSharpBooks(books []string) *StaticSharpBooks {
	set := make(map[string]bool, len(books))
	ordered := make([]string, 0, len(books))
	for _, b := range books {
		key := strings.ToLower(strings.TrimSpace(b))
		if key == "" || set[key] {
			continue
		}
		set[key] = true
		ordered = append(ordered, key)
	}
	return &StaticSharpBooks{ordered: ordered, set: set}
}

// SharpBooks returns the sharp book keys in priority order
func (p *StaticSharpBooks) SharpBooks() []string {
	out := make([]string, len(p.ordered))
	copy(out, p.ordered)
	return out
}

// IsSharpBook reports whether bookKey belongs to the sharp set
func (p *StaticSharpBooks) IsSharpBook(bookKey string) bool {
	return p.set[strings.ToLower(bookKey)]
}
