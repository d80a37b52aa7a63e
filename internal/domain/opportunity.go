package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityLeg is one outcome contributing to a detected opportunity.
type OpportunityLeg struct {
	OutcomeTitle string          `json:"outcome_title"`
	BestAskPrice decimal.Decimal `json:"best_ask_price"`
	BestAskSize  decimal.Decimal `json:"best_ask_size"`
	TokenID      string          `json:"token_id"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Opportunity records one violation of the cross-outcome best-ask-sum
// invariant. Records are append-only and never rewritten.
type Opportunity struct {
	ID               string           `json:"id"`
	EventID          string           `json:"event_id"`
	EventTitle       string           `json:"event_title"`
	Timestamp        time.Time        `json:"timestamp"`
	Threshold        decimal.Decimal  `json:"threshold"`
	CostSum          decimal.Decimal  `json:"cost_sum"`
	OutcomesWithAsks int              `json:"outcomes_with_asks"`
	TotalOutcomes    int              `json:"total_outcomes"`
	// Incomplete marks opportunities computed without ask data from every
	// outcome; valid, but normally a sign the event is not fully streamed
	// yet.
	Incomplete bool             `json:"incomplete"`
	Outcomes   []OpportunityLeg `json:"outcomes"`
}
