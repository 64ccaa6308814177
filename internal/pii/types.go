package pii

// EntityType identifies a category of personally identifiable information.
type EntityType string

const (
	TypePerson  EntityType = "PERSON"
	TypeEmail   EntityType = "EMAIL"
	TypePhone   EntityType = "PHONE"
	TypeAddress EntityType = "ADDRESS"
	TypeSSN     EntityType = "SSN"
	TypeIBAN    EntityType = "IBAN"
)

// AllTypes lists every detection category, in the order rules run.
func AllTypes() []EntityType {
	return []EntityType{TypeEmail, TypeIBAN, TypeSSN, TypePhone, TypeAddress, TypePerson}
}

// Entity is a single PII occurrence found in a text. Entities are
// transient: produced per detection call, never persisted.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"-"` // never serialized
	StartIndex int        `json:"startIndex"`
	EndIndex   int        `json:"endIndex"`
	Confidence float64    `json:"confidence"`
}

// DetectionResult is the output of one detection pass. Entities are
// sorted by StartIndex ascending.
type DetectionResult struct {
	Entities      []Entity
	TotalCount    int
	DetectedTypes []EntityType
}

// Has reports whether the result contains at least one entity of t.
func (r DetectionResult) Has(t EntityType) bool {
	for _, dt := range r.DetectedTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// Mapping links one placeholder token to the original value it replaced.
type Mapping struct {
	Token         string     `json:"token"`
	OriginalValue string     `json:"-"` // never serialized
	Type          EntityType `json:"type"`
}

// Summary is the only mapping-derived shape allowed to reach audit
// logs: category names and a count, never values.
type Summary struct {
	PIITypes []EntityType `json:"pii_types"`
	PIICount int          `json:"pii_count"`
}
