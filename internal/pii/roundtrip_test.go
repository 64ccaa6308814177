package pii

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"
)

var roundTripPII = []string{
	"Jean Dupont",
	"Marie-Claire Martin",
	"jean.dupont@example.com",
	"support@dataveil.fr",
	"06 12 34 56 78",
	"+33 6 12 34 56 78",
	"1 85 05 78 006 084 36",
	"FR76 3000 6000 0112 3456 7890 189",
	"DE89 3704 0044 0532 0130 00",
	"12 rue de la Paix, 75002 Paris",
}

var roundTripFiller = []string{
	"le dossier", "a été transmis", "pour traitement", "hier soir",
	"sans objet", "merci de vérifier", "au service concerné",
}

// Round-trip law: restoring the masked text with its own mapping table
// yields the original text, whatever mix of PII the text carries.
func TestMaskRestoreRoundTrip(t *testing.T) {
	d, err := NewDetector([]string{"all"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "segments")
		parts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "pickPII") {
				parts = append(parts, rapid.SampledFrom(roundTripPII).Draw(rt, "pii"))
			} else {
				parts = append(parts, rapid.SampledFrom(roundTripFiller).Draw(rt, "filler"))
			}
		}
		text := strings.Join(parts, " ")

		res := Mask(text, d.Detect(text).Entities)
		if !ValidateMaskedText(res.MaskedText, res.Table) {
			rt.Fatalf("leak in masked text: %q", res.MaskedText)
		}
		if got := Restore(res.MaskedText, res.Table); got != text {
			rt.Fatalf("round trip mismatch:\noriginal: %q\nrestored: %q", text, got)
		}
	})
}

func TestRoundTripFixedCorpus(t *testing.T) {
	d, err := NewDetector([]string{"all"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	for _, text := range []string{
		"",
		"aucune donnée ici",
		"Jean Dupont, jean@example.com, 06 12 34 56 78",
		"Virement vers FR76 3000 6000 0112 3456 7890 189 pour Jean Dupont",
		"NIR 1 85 05 78 006 084 36 enregistré au 12 rue de la Paix, 75002 Paris",
	} {
		res := Mask(text, d.Detect(text).Entities)
		if got := Restore(res.MaskedText, res.Table); got != text {
			t.Errorf("round trip mismatch for %q: got %q", text, got)
		}
	}
}
