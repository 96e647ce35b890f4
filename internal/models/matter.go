package models

import "time"

// BillingModel selects the fee-calculation policy for a matter.
type BillingModel string

const (
	BillingBriefFee     BillingModel = "brief-fee"
	BillingTimeBased    BillingModel = "time-based"
	BillingQuickOpinion BillingModel = "quick-opinion"
)

// Matter carries the billing-relevant fields of a matter record.
// Monetary amounts are in cents of the practice currency.
type Matter struct {
	ID                      string       `json:"id,omitempty"`
	Title                   string       `json:"title"`
	ClientName              string       `json:"client_name"`
	InstructingAttorney     string       `json:"instructing_attorney"`
	MatterType              string       `json:"matter_type"`
	Description             string       `json:"description,omitempty"`
	CourtCaseNumber         string       `json:"court_case_number,omitempty"`
	BillingModel            BillingModel `json:"billing_model,omitempty"`
	EstimatedFee            int64        `json:"estimated_fee,omitempty"`
	ActualFee               int64        `json:"actual_fee,omitempty"`
	WIPValue                int64        `json:"wip_value,omitempty"`
	HourlyRate              int64        `json:"hourly_rate,omitempty"`
	FeeCap                  int64        `json:"fee_cap,omitempty"`
	ExpectedCompletionDate  time.Time    `json:"expected_completion_date,omitempty"`
	Tags                    []string     `json:"tags,omitempty"`
}

// Model returns the matter's billing model, defaulting to brief fee
// when none is set.
func (m *Matter) Model() BillingModel {
	switch m.BillingModel {
	case BillingTimeBased, BillingQuickOpinion, BillingBriefFee:
		return m.BillingModel
	default:
		return BillingBriefFee
	}
}
