package billing

import (
	"errors"
	"fmt"

	"github.com/lexohub/lexsync/internal/models"
)

var quickOpinionMilestones = []Milestone{
	{
		ID:          "request-received",
		Label:       "Request Received",
		Description: "Opinion request received and acknowledged",
		Order:       1,
	},
	{
		ID:          "opinion-delivered",
		Label:       "Opinion Delivered",
		Description: "Written opinion delivered to client",
		Order:       2,
	},
}

// QuickOpinionConfig bounds the typical flat fee for quick opinions.
type QuickOpinionConfig struct {
	MinFee         int64
	MaxFee         int64
	TurnaroundDays int
}

// DefaultQuickOpinionConfig matches standard practice rates.
func DefaultQuickOpinionConfig() QuickOpinionConfig {
	return QuickOpinionConfig{MinFee: 2500, MaxFee: 10000, TurnaroundDays: 3}
}

// QuickOpinionStrategy implements flat-rate, fast-turnaround opinion
// billing with a simplified workflow.
type QuickOpinionStrategy struct {
	cfg QuickOpinionConfig
}

// NewQuickOpinionStrategy creates the strategy with the given fee
// range. Zero values fall back to defaults.
func NewQuickOpinionStrategy(cfg QuickOpinionConfig) *QuickOpinionStrategy {
	def := DefaultQuickOpinionConfig()
	if cfg.MinFee <= 0 {
		cfg.MinFee = def.MinFee
	}
	if cfg.MaxFee <= 0 {
		cfg.MaxFee = def.MaxFee
	}
	if cfg.TurnaroundDays <= 0 {
		cfg.TurnaroundDays = def.TurnaroundDays
	}
	return &QuickOpinionStrategy{cfg: cfg}
}

func (s *QuickOpinionStrategy) Model() models.BillingModel { return models.BillingQuickOpinion }

// InvoiceAmount is the agreed flat fee.
func (s *QuickOpinionStrategy) InvoiceAmount(matter *models.Matter) (int64, error) {
	if matter.ActualFee > 0 {
		return matter.ActualFee, nil
	}
	if matter.EstimatedFee > 0 {
		return matter.EstimatedFee, nil
	}
	return 0, errors.New("quick opinion matter must have an agreed fee amount")
}

func (s *QuickOpinionStrategy) RequiredFields() []string {
	return []string{
		"title",
		"client_name",
		"instructing_attorney",
		"matter_type",
		"estimated_fee",
		"description",
	}
}

func (s *QuickOpinionStrategy) OptionalFields() []string {
	return []string{
		"court_case_number",
		"expected_completion_date",
		"tags",
	}
}

// ShowTimeTracking is false: quick opinions are flat-rate.
func (s *QuickOpinionStrategy) ShowTimeTracking() bool { return false }

func (s *QuickOpinionStrategy) Milestones() []Milestone {
	return cloneMilestones(quickOpinionMilestones)
}

func (s *QuickOpinionStrategy) Validate(matter *models.Matter) ValidationResult {
	var errs, warnings []Issue

	validateCommonFields(matter, &errs)

	if matter.Description == "" {
		errs = append(errs, Issue{
			Field:   "description",
			Message: "Opinion request details are required",
			Code:    CodeRequiredField,
		})
	}

	fee := matter.EstimatedFee
	if fee == 0 {
		fee = matter.ActualFee
	}

	switch {
	case fee <= 0:
		errs = append(errs, Issue{
			Field:   "estimated_fee",
			Message: "Fee must be greater than zero",
			Code:    CodeInvalidValue,
		})
	case fee < s.cfg.MinFee:
		warnings = append(warnings, Issue{
			Field: "estimated_fee",
			Message: fmt.Sprintf("Fee is below typical range (R%d - R%d)",
				s.cfg.MinFee, s.cfg.MaxFee),
			Code: CodeBelowTypicalRange,
		})
	case fee > s.cfg.MaxFee:
		warnings = append(warnings, Issue{
			Field: "estimated_fee",
			Message: fmt.Sprintf("Fee is above typical range (R%d - R%d), consider standard brief fee billing",
				s.cfg.MinFee, s.cfg.MaxFee),
			Code: CodeAboveTypicalRange,
		})
	}

	if matter.ExpectedCompletionDate.IsZero() {
		warnings = append(warnings, Issue{
			Field: "expected_completion_date",
			Message: fmt.Sprintf("Quick opinions typically have a %d-day turnaround",
				s.cfg.TurnaroundDays),
			Code: CodeRecommendedField,
		})
	}

	return ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}
