// Package billing selects and applies fee-calculation policies per
// matter: fixed brief fee, hourly time-based, or flat quick opinion.
package billing

import (
	"github.com/lexohub/lexsync/internal/models"
)

// Issue codes produced by strategy validation.
const (
	CodeRequiredField     = "REQUIRED_FIELD"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeRecommendedField  = "RECOMMENDED_FIELD"
	CodeBelowTypicalRange = "BELOW_TYPICAL_RANGE"
	CodeAboveTypicalRange = "ABOVE_TYPICAL_RANGE"
)

// Issue is one validation finding on a matter field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult reports whether a matter satisfies its billing
// model. Warnings never affect IsValid.
type ValidationResult struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Milestone is one step of a fee model's fixed checklist.
type Milestone struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Order       int    `json:"order"`
}

// Strategy is a fee-calculation policy. Strategies are stateless and
// safe to share.
type Strategy interface {
	// Model identifies the billing model this strategy implements.
	Model() models.BillingModel

	// InvoiceAmount computes the invoice amount for a matter.
	InvoiceAmount(matter *models.Matter) (int64, error)

	// RequiredFields lists fields the model insists on.
	RequiredFields() []string

	// OptionalFields lists fields the model accepts but does not need.
	OptionalFields() []string

	// ShowTimeTracking reports whether time tracking belongs in the
	// matter's workflow.
	ShowTimeTracking() bool

	// Milestones returns the model's fixed checklist, if any.
	Milestones() []Milestone

	// Validate checks a matter against the model's rules.
	Validate(matter *models.Matter) ValidationResult
}

// validateCommonFields checks the fields every model requires.
func validateCommonFields(matter *models.Matter, errors *[]Issue) {
	if matter.Title == "" {
		*errors = append(*errors, Issue{
			Field:   "title",
			Message: "Matter title is required",
			Code:    CodeRequiredField,
		})
	}
	if matter.ClientName == "" {
		*errors = append(*errors, Issue{
			Field:   "client_name",
			Message: "Client name is required",
			Code:    CodeRequiredField,
		})
	}
	if matter.InstructingAttorney == "" {
		*errors = append(*errors, Issue{
			Field:   "instructing_attorney",
			Message: "Instructing attorney is required",
			Code:    CodeRequiredField,
		})
	}
	if matter.MatterType == "" {
		*errors = append(*errors, Issue{
			Field:   "matter_type",
			Message: "Matter type is required",
			Code:    CodeRequiredField,
		})
	}
}

func cloneMilestones(src []Milestone) []Milestone {
	out := make([]Milestone, len(src))
	copy(out, src)
	return out
}
