package pii

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMappingsSealed is returned when code attempts to grow a mapping
// table after it has been sealed.
var ErrMappingsSealed = errors.New("pii: mapping table is sealed")

// MappingTable is the per-request bridge between redacted and real
// data. It is built during one masking pass, sealed before it leaves
// the masker, and discarded at the end of the invocation. It must
// never be written to disk, logs or audit events.
type MappingTable struct {
	mappings []Mapping
	byValue  map[string]string
	counters map[EntityType]int
	sealed   bool
}

// NewMappingTable returns an empty, unsealed table.
func NewMappingTable() *MappingTable {
	return &MappingTable{
		byValue:  make(map[string]string),
		counters: make(map[EntityType]int),
	}
}

// add records a new mapping. It fails once the table is sealed.
func (t *MappingTable) add(m Mapping) error {
	if t.sealed {
		return ErrMappingsSealed
	}
	t.mappings = append(t.mappings, m)
	t.byValue[m.OriginalValue] = m.Token
	return nil
}

// Append records an additional mapping. It fails with
// ErrMappingsSealed once the table has been sealed.
func (t *MappingTable) Append(m Mapping) error { return t.add(m) }

// Seal freezes the table. Every mutation attempt afterwards fails.
func (t *MappingTable) Seal() { t.sealed = true }

// Sealed reports whether the table is frozen.
func (t *MappingTable) Sealed() bool { return t.sealed }

// Len returns the number of unique mappings.
func (t *MappingTable) Len() int { return len(t.mappings) }

// Mappings returns a copy of the mapping list. Mutating the copy does
// not affect the table.
func (t *MappingTable) Mappings() []Mapping {
	out := make([]Mapping, len(t.mappings))
	copy(out, t.mappings)
	return out
}

// TokenFor returns the token assigned to value within this pass.
func (t *MappingTable) TokenFor(value string) (string, bool) {
	tok, ok := t.byValue[value]
	return tok, ok
}

// Summary reduces the table to category names and a count. This is the
// only mapping-derived shape allowed to reach audit logs; original
// values are deliberately absent.
func (t *MappingTable) Summary() Summary {
	seen := make(map[EntityType]bool)
	var types []EntityType
	for _, m := range t.mappings {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}
	if types == nil {
		types = []EntityType{}
	}
	return Summary{PIITypes: types, PIICount: len(t.mappings)}
}

// MaskResult is the output of one masking pass. MaskCount counts
// unique mappings, not entity occurrences.
type MaskResult struct {
	MaskedText   string
	Table        *MappingTable
	MaskCount    int
	OriginalText string
}

// Mask substitutes every detected span with a deterministic
// placeholder token and returns the sealed mapping table.
//
// Token assignment walks entities in position order: a value seen
// before in this pass (exact string match) reuses its token; a new
// value mints "[TYPE_n]" with n drawn from that type's own counter,
// starting at 1. Substitution itself runs longest-value-first so a
// value contained inside another (an address wrapping a postal code,
// overlapping detections of different categories) cannot corrupt the
// outer span.
func Mask(text string, entities []Entity) MaskResult {
	table := NewMappingTable()

	for _, e := range entities {
		if e.Value == "" {
			continue
		}
		if _, seen := table.TokenFor(e.Value); seen {
			continue
		}
		table.counters[e.Type]++
		token := fmt.Sprintf("[%s_%d]", e.Type, table.counters[e.Type])
		// add cannot fail here: the table is sealed only below.
		_ = table.add(Mapping{Token: token, OriginalValue: e.Value, Type: e.Type})
	}

	ordered := table.Mappings()
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].OriginalValue) > len(ordered[j].OriginalValue)
	})

	masked := text
	for _, m := range ordered {
		masked = strings.ReplaceAll(masked, m.OriginalValue, m.Token)
	}

	table.Seal()
	return MaskResult{
		MaskedText:   masked,
		Table:        table,
		MaskCount:    table.Len(),
		OriginalText: text,
	}
}

// ValidateMaskedText is the leak oracle: it returns false if any
// mapping's original value still appears verbatim in the masked text.
func ValidateMaskedText(maskedText string, table *MappingTable) bool {
	for _, m := range table.Mappings() {
		if strings.Contains(maskedText, m.OriginalValue) {
			return false
		}
	}
	return true
}
