package billing

import (
	"github.com/lexohub/lexsync/internal/models"
)

// TimeBasedStrategy implements hourly billing for extended litigation
// and other matters where time tracking is essential.
type TimeBasedStrategy struct{}

func (s *TimeBasedStrategy) Model() models.BillingModel { return models.BillingTimeBased }

// InvoiceAmount prefers the actual fee (billed time), then the
// work-in-progress value, then the budget estimate.
func (s *TimeBasedStrategy) InvoiceAmount(matter *models.Matter) (int64, error) {
	if matter.ActualFee > 0 {
		return matter.ActualFee, nil
	}
	if matter.WIPValue > 0 {
		return matter.WIPValue, nil
	}
	return matter.EstimatedFee, nil
}

func (s *TimeBasedStrategy) RequiredFields() []string {
	return []string{
		"title",
		"client_name",
		"instructing_attorney",
		"matter_type",
		"hourly_rate",
	}
}

func (s *TimeBasedStrategy) OptionalFields() []string {
	return []string{
		"description",
		"court_case_number",
		"expected_completion_date",
		"tags",
		"estimated_fee",
		"fee_cap",
	}
}

// ShowTimeTracking is always true for hourly billing.
func (s *TimeBasedStrategy) ShowTimeTracking() bool { return true }

// Milestones is empty: progress is tracked through time entries
// instead.
func (s *TimeBasedStrategy) Milestones() []Milestone { return nil }

func (s *TimeBasedStrategy) Validate(matter *models.Matter) ValidationResult {
	var errs, warnings []Issue

	validateCommonFields(matter, &errs)

	if matter.HourlyRate <= 0 {
		errs = append(errs, Issue{
			Field:   "hourly_rate",
			Message: "Hourly rate is required for time-based billing",
			Code:    CodeRequiredField,
		})
	}

	if matter.FeeCap > 0 && matter.EstimatedFee > matter.FeeCap {
		warnings = append(warnings, Issue{
			Field:   "estimated_fee",
			Message: "Budget estimate exceeds the fee cap",
			Code:    CodeInvalidValue,
		})
	}
	if matter.EstimatedFee == 0 {
		warnings = append(warnings, Issue{
			Field:   "estimated_fee",
			Message: "Setting a budget estimate helps manage client expectations",
			Code:    CodeRecommendedField,
		})
	}

	return ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}
