package pii

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Detector pattern-matches raw text for PII categories. Detection is
// rule-based (compiled regular expressions), pure in-memory and free
// of I/O: Detect never fails for well-formed string input.
type Detector struct {
	rules   []DetectionRule
	enabled map[EntityType]bool
	logger  *zap.Logger
}

// NewDetector creates a detector with the given categories enabled.
// The single element "all" enables every built-in rule.
func NewDetector(categories []string, logger *zap.Logger) (*Detector, error) {
	d := &Detector{
		rules:   defaultRules(),
		enabled: make(map[EntityType]bool),
		logger:  logger,
	}
	if err := d.configure(categories); err != nil {
		return nil, err
	}
	logger.Info("pii detector initialized",
		zap.Int("total_rules", len(d.rules)),
		zap.Int("enabled_rules", d.countEnabled()),
	)
	return d, nil
}

func (d *Detector) configure(categories []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Type] = false
	}
	for _, c := range categories {
		if c == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Type] = true
			}
			continue
		}
		found := false
		for _, rule := range d.rules {
			if string(rule.Type) == strings.ToUpper(c) {
				d.enabled[rule.Type] = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown pii category: %s", c)
		}
	}
	return nil
}

func (d *Detector) countEnabled() int {
	n := 0
	for _, on := range d.enabled {
		if on {
			n++
		}
	}
	return n
}

// EnabledTypes returns the categories this detector scans for.
func (d *Detector) EnabledTypes() []EntityType {
	var types []EntityType
	for _, rule := range d.rules {
		if d.enabled[rule.Type] {
			types = append(types, rule.Type)
		}
	}
	return types
}

// Detect scans text for every enabled category and returns the
// position-tagged entities, sorted by start offset. Overlapping
// detections of different categories are both retained; deduplication
// by value happens at masking. Empty input yields an empty result.
func (d *Detector) Detect(text string) DetectionResult {
	if text == "" {
		return DetectionResult{Entities: []Entity{}}
	}

	var entities []Entity
	for _, rule := range d.rules {
		if !d.enabled[rule.Type] {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			e := Entity{
				Type:       rule.Type,
				Value:      text[loc[0]:loc[1]],
				StartIndex: loc[0],
				EndIndex:   loc[1],
				Confidence: rule.Confidence,
			}
			if rule.Type == TypePerson {
				trimmed, ok := trimPersonCandidate(e)
				if !ok {
					continue
				}
				e = trimmed
			}
			entities = append(entities, e)
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].StartIndex != entities[j].StartIndex {
			return entities[i].StartIndex < entities[j].StartIndex
		}
		return entities[i].EndIndex > entities[j].EndIndex
	})

	seen := make(map[EntityType]bool)
	var types []EntityType
	for _, e := range entities {
		if !seen[e.Type] {
			seen[e.Type] = true
			types = append(types, e.Type)
		}
	}

	if entities == nil {
		entities = []Entity{}
	}
	return DetectionResult{
		Entities:      entities,
		TotalCount:    len(entities),
		DetectedTypes: types,
	}
}

// trimPersonCandidate strips leading and trailing stopword tokens from
// a PERSON candidate, adjusting offsets. A candidate that keeps fewer
// than two tokens is rejected.
func trimPersonCandidate(e Entity) (Entity, bool) {
	type span struct {
		word       string
		start, end int
	}
	var tokens []span
	offset := 0
	for _, w := range strings.Split(e.Value, " ") {
		if w != "" {
			tokens = append(tokens, span{word: w, start: offset, end: offset + len(w)})
		}
		offset += len(w) + 1
	}

	lo, hi := 0, len(tokens)
	for lo < hi {
		if _, stop := personStopwords[tokens[lo].word]; !stop {
			break
		}
		lo++
	}
	for hi > lo {
		if _, stop := personStopwords[tokens[hi-1].word]; !stop {
			break
		}
		hi--
	}
	if hi-lo < 2 {
		return Entity{}, false
	}

	start := e.StartIndex + tokens[lo].start
	end := e.StartIndex + tokens[hi-1].end
	return Entity{
		Type:       e.Type,
		Value:      e.Value[tokens[lo].start:tokens[hi-1].end],
		StartIndex: start,
		EndIndex:   end,
		Confidence: e.Confidence,
	}, true
}
