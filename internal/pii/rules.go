package pii

import "regexp"

// DetectionRule binds one PII category to its compiled pattern.
type DetectionRule struct {
	Type       EntityType
	Pattern    *regexp.Regexp
	Confidence float64
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// IBAN grammar: country code, two check digits, then 4-char groups
	// with an optional short tail. Covers FR76… and DE89… forms and
	// extends to other country codes.
	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`)

	// French NIR: sex digit, year, month, department (incl. Corsican
	// 2A/2B), commune, order number, optional 2-digit key. 13 to 15
	// digits, with or without internal spacing.
	ssnPattern = regexp.MustCompile(`\b[12] ?\d{2} ?(?:0[1-9]|1[0-2]) ?(?:\d{2}|2[AB]) ?\d{3} ?\d{3}(?: ?\d{2})?\b`)

	// French mobile/landline with optional space, dot or dash
	// separators, plus the international +33 prefix form.
	phonePattern = regexp.MustCompile(`(?:\+33[ .-]?[1-9]|0[1-9])(?:[ .-]?\d{2}){4}\b`)

	// Number + street-type keyword + street name, optionally followed
	// by postal code + city.
	addressPattern = regexp.MustCompile(`(?i)\b\d{1,4}(?: (?:bis|ter))?,? (?:rue|avenue|boulevard|bd|place|chemin|impasse|allée|allee|quai|cours|route|square)(?: [\p{L}'’-]+){1,5}(?:,? \d{5} [\p{L}'’-]+)?`)

	// Sequences of two or more capitalized tokens, hyphenation allowed
	// ("Marie-Claire Martin"). Filtered afterwards against the
	// stopword list to bound false positives.
	personPattern = regexp.MustCompile(`\p{Lu}[\p{Ll}’']+(?:-\p{Lu}[\p{Ll}’']+)*(?: \p{Lu}[\p{Ll}’']+(?:-\p{Lu}[\p{Ll}’']+)*)+`)
)

// personStopwords are capitalized tokens that commonly start sentences
// or are technical vocabulary, not name parts. Leading and trailing
// stopword tokens are trimmed from PERSON candidates; a candidate that
// no longer carries at least two tokens is dropped.
var personStopwords = map[string]struct{}{
	"Le": {}, "La": {}, "Les": {}, "Un": {}, "Une": {}, "Des": {},
	"Je": {}, "Tu": {}, "Il": {}, "Elle": {}, "Nous": {}, "Vous": {},
	"Ce": {}, "Cette": {}, "Ces": {}, "Mon": {}, "Ma": {}, "Mes": {},
	"Son": {}, "Sa": {}, "Ses": {}, "Notre": {}, "Votre": {},
	"Bonjour": {}, "Merci": {}, "Cordialement": {}, "Madame": {},
	"Monsieur": {}, "Docteur": {}, "Cher": {}, "Chère": {},
	"Contactez": {}, "Appelez": {}, "Envoyez": {}, "Demandez": {},
	"API": {}, "REST": {}, "HTTP": {}, "HTTPS": {}, "JSON": {},
	"XML": {}, "SQL": {}, "HTML": {}, "URL": {}, "RGPD": {},
	"GDPR": {}, "DPIA": {}, "CNIL": {}, "IBAN": {}, "SDK": {},
	"JWT": {}, "LLM": {},
}

// defaultRules returns the built-in rule table. Order matters for
// entities sharing a start offset: more specific grammars run first.
func defaultRules() []DetectionRule {
	return []DetectionRule{
		{Type: TypeEmail, Pattern: emailPattern, Confidence: 1.0},
		{Type: TypeIBAN, Pattern: ibanPattern, Confidence: 1.0},
		{Type: TypeSSN, Pattern: ssnPattern, Confidence: 1.0},
		{Type: TypePhone, Pattern: phonePattern, Confidence: 1.0},
		{Type: TypeAddress, Pattern: addressPattern, Confidence: 0.9},
		{Type: TypePerson, Pattern: personPattern, Confidence: 0.85},
	}
}
