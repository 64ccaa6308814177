// Package policy classifies requested AI use cases against closed
// allow and deny enumerations. Anything not explicitly allowlisted is
// rejected: adding a use case requires a reviewed code change, never a
// silent string match.
package policy

import "fmt"

// RiskLevel grades an allowed use case.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// UseCaseClass groups allowed use cases sharing one risk profile.
type UseCaseClass int

const (
	ClassUnknown UseCaseClass = iota
	ClassTransformation
	ClassClassification
	ClassExtraction
	ClassAssistedGeneration
)

// allowedUseCases is the closed allowlist: identifier to class.
var allowedUseCases = map[string]UseCaseClass{
	// Transformation: content is rewritten, never decided upon.
	"reformulation":     ClassTransformation,
	"summarization":     ClassTransformation,
	"normalization":     ClassTransformation,
	"pii_anonymization": ClassTransformation,
	"redaction":         ClassTransformation,

	// Classification: categorize without decisional effect.
	"categorization":          ClassClassification,
	"document_type_detection": ClassClassification,
	"non_decisional_scoring":  ClassClassification,

	// Extraction: pull structure out of content.
	"field_extraction":    ClassExtraction,
	"content_structuring": ClassExtraction,

	// Assisted generation: a human stays in the loop.
	"writing_assistance": ClassAssistedGeneration,
	"suggestions":        ClassAssistedGeneration,
}

// forbiddenUseCases is the closed denylist: identifier to the reason
// its category is forbidden.
var forbiddenUseCases = map[string]string{
	"automated_legal_decision": "automated decisions with legal effect are forbidden",
	"medical_diagnosis":        "medical diagnosis is forbidden",
	"legal_advice":             "binding legal advice is forbidden",
	"profiling":                "profiling without explicit consent is forbidden",
	"training_on_user_data":    "training models on user data is forbidden",
	"frontend_direct_call":     "direct frontend LLM calls are forbidden",
	"loan_automation":          "loan decision automation is forbidden",
	"employment_automation":    "employment decision automation is forbidden",
	"credit_scoring":           "credit decision automation is forbidden",
}

// ValidationResult is the outcome of classifying one use case. It is
// computed fresh per call and never cached: policy is a pure function
// of the identifier.
type ValidationResult struct {
	Allowed                 bool      `json:"allowed"`
	UseCase                 string    `json:"useCase"`
	RiskLevel               RiskLevel `json:"riskLevel"`
	RejectionReason         string    `json:"rejectionReason,omitempty"`
	ConsentRequired         bool      `json:"consentRequired"`
	HumanValidationRequired bool      `json:"humanValidationRequired"`
}

// ValidateUseCase classifies the identifier. Three outcomes: forbidden
// (denylisted), allowed with a class-specific risk profile, or unknown,
// which fails closed.
func ValidateUseCase(useCase string) ValidationResult {
	if reason, forbidden := forbiddenUseCases[useCase]; forbidden {
		return ValidationResult{
			Allowed:         false,
			UseCase:         useCase,
			RiskLevel:       RiskHigh,
			RejectionReason: reason,
		}
	}

	class, allowed := allowedUseCases[useCase]
	if !allowed {
		return ValidationResult{
			Allowed:         false,
			UseCase:         useCase,
			RiskLevel:       RiskHigh,
			RejectionReason: fmt.Sprintf("unknown use case %q, not in allowlist", useCase),
		}
	}

	result := ValidationResult{
		Allowed:         true,
		UseCase:         useCase,
		ConsentRequired: true,
	}
	switch class {
	case ClassTransformation:
		result.RiskLevel = RiskLow
	case ClassClassification, ClassExtraction:
		result.RiskLevel = RiskModerate
	case ClassAssistedGeneration:
		result.RiskLevel = RiskHigh
		result.HumanValidationRequired = true
	}
	return result
}

// ViolationError reports a rejected use case.
type ViolationError struct {
	UseCase string
	Reason  string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("use case %q rejected: %s", e.UseCase, e.Reason)
}

// EnforceUseCasePolicy returns a ViolationError when the use case is
// not allowed and is side-effect-free otherwise. The returned
// ValidationResult carries the risk profile callers need downstream.
func EnforceUseCasePolicy(useCase string) (ValidationResult, error) {
	result := ValidateUseCase(useCase)
	if !result.Allowed {
		return result, &ViolationError{UseCase: useCase, Reason: result.RejectionReason}
	}
	return result, nil
}
