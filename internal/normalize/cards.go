package normalize

import (
	"sort"
	"strings"
)

// NameLookup resolves an item or card identifier to its display name.
// Implementations return ok == false for unknown or negative ids and must
// not fail the lookup any other way.
type NameLookup interface {
	Name(id int) (name string, ok bool)
}

// Classifier decides whether the sub-item ids attached to a variant filter
// represent card slots. Enchants and pet-loyalty markers occupy the same
// slots upstream, so only combinations where every id resolves to a name
// containing "card" are rendered as cards.
type Classifier struct {
	names NameLookup
}

// NewClassifier creates a classifier backed by the given name lookup.
func NewClassifier(names NameLookup) *Classifier {
	return &Classifier{names: names}
}

// CardCombo renders the given sub-item ids as a card combo string.
// Zero ids are dropped. If no ids remain, or any remaining id fails to
// resolve, or any resolved name does not contain "card" (case-insensitive),
// the combo is "" and the variant is treated as having no cards.
// Otherwise the resolved names are sorted and joined with ", ".
func (c *Classifier) CardCombo(ids []int) string {
	var names []string
	for _, id := range ids {
		if id == 0 {
			continue
		}
		name, ok := c.names.Name(id)
		if !ok {
			return ""
		}
		if !strings.Contains(strings.ToLower(name), "card") {
			return ""
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
