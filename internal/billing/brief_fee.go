package billing

import (
	"errors"

	"github.com/lexohub/lexsync/internal/models"
)

var briefFeeMilestones = []Milestone{
	{
		ID:          "brief-accepted",
		Label:       "Brief Accepted",
		Description: "Brief has been accepted and matter is active",
		Order:       1,
	},
	{
		ID:          "opinion-delivered",
		Label:       "Opinion Delivered",
		Description: "Legal opinion has been delivered to client",
		Order:       2,
	},
	{
		ID:          "court-appearance",
		Label:       "Court Appearance Completed",
		Description: "Court appearance or hearing completed",
		Order:       3,
	},
}

// BriefFeeStrategy implements fixed brief-fee billing, the default
// model for most advocates.
type BriefFeeStrategy struct{}

func (s *BriefFeeStrategy) Model() models.BillingModel { return models.BillingBriefFee }

// InvoiceAmount is the agreed fee: actual if set, else estimated.
func (s *BriefFeeStrategy) InvoiceAmount(matter *models.Matter) (int64, error) {
	if matter.ActualFee > 0 {
		return matter.ActualFee, nil
	}
	if matter.EstimatedFee > 0 {
		return matter.EstimatedFee, nil
	}
	return 0, errors.New("brief fee matter must have an agreed fee amount")
}

func (s *BriefFeeStrategy) RequiredFields() []string {
	return []string{
		"title",
		"client_name",
		"instructing_attorney",
		"matter_type",
		"estimated_fee",
	}
}

func (s *BriefFeeStrategy) OptionalFields() []string {
	return []string{
		"description",
		"court_case_number",
		"expected_completion_date",
		"tags",
		"time_entries",
	}
}

// ShowTimeTracking is false: brief fees hide time tracking by default;
// it can be enabled separately for internal analysis.
func (s *BriefFeeStrategy) ShowTimeTracking() bool { return false }

func (s *BriefFeeStrategy) Milestones() []Milestone {
	return cloneMilestones(briefFeeMilestones)
}

func (s *BriefFeeStrategy) Validate(matter *models.Matter) ValidationResult {
	var errs, warnings []Issue

	validateCommonFields(matter, &errs)

	// An unset fee and a zero fee are the same defect here: there is
	// no agreed amount to invoice.
	if matter.ActualFee <= 0 && matter.EstimatedFee <= 0 {
		errs = append(errs, Issue{
			Field:   "estimated_fee",
			Message: "Brief fee must be greater than zero",
			Code:    CodeInvalidValue,
		})
	}

	if matter.Description == "" {
		warnings = append(warnings, Issue{
			Field:   "description",
			Message: "Adding a description helps track matter details",
			Code:    CodeRecommendedField,
		})
	}
	if matter.ExpectedCompletionDate.IsZero() {
		warnings = append(warnings, Issue{
			Field:   "expected_completion_date",
			Message: "Setting an expected completion date helps with planning",
			Code:    CodeRecommendedField,
		})
	}

	return ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}
