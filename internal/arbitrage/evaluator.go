// Package arbitrage evaluates loaded events for cross-outcome mispricing.
package arbitrage

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultThreshold is the cost ceiling below which buying one YES share of
// every outcome is flagged as an opportunity.
var DefaultThreshold = decimal.RequireFromString("0.99")

// Evaluator checks whether the best YES asks across an event's outcomes sum
// to less than the configured threshold. All arithmetic is exact decimal.
type Evaluator struct {
	threshold decimal.Decimal
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator with the given cost threshold. A zero or
// negative threshold falls back to the default.
func NewEvaluator(threshold decimal.Decimal, logger *slog.Logger) *Evaluator {
	if threshold.LessThanOrEqual(decimal.Zero) {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		threshold: threshold,
		logger:    logger.With(slog.String("component", "arbitrage")),
	}
}

// Threshold returns the configured cost ceiling.
func (e *Evaluator) Threshold() decimal.Decimal { return e.threshold }

// CheckEvent sums the best YES ask across the event's outcomes and returns an
// opportunity when the sum is at or below the threshold. Outcomes whose YES
// book has no asks contribute nothing; when any outcome is missing ask data,
// a qualifying result is flagged incomplete rather than dropped. Nil means no
// decision: either nothing qualifies or no book is populated.
func (e *Evaluator) CheckEvent(ev *domain.Event) *domain.Opportunity {
	if ev == nil || len(ev.Outcomes) == 0 {
		return nil
	}

	marketIDs := make([]string, 0, len(ev.Outcomes))
	for id := range ev.Outcomes {
		marketIDs = append(marketIDs, id)
	}
	sort.Strings(marketIDs)

	sum := decimal.Zero
	legs := make([]domain.OpportunityLeg, 0, len(marketIDs))
	for _, id := range marketIDs {
		outcome := ev.Outcomes[id]
		if outcome.Yes == nil || outcome.Yes.Book == nil {
			continue
		}
		ask, ok := outcome.Yes.Book.Asks.Best()
		if !ok {
			continue
		}
		sum = sum.Add(ask.Price)
		legs = append(legs, domain.OpportunityLeg{
			OutcomeTitle: outcome.Title,
			BestAskPrice: ask.Price,
			BestAskSize:  ask.Size,
			TokenID:      outcome.Yes.TokenID,
			LastUpdated:  outcome.Yes.Book.LastUpdated,
		})
	}

	if len(legs) == 0 {
		return nil
	}
	if sum.GreaterThan(e.threshold) {
		return nil
	}

	opp := &domain.Opportunity{
		ID:               uuid.NewString(),
		EventID:          ev.EventID,
		EventTitle:       ev.Title,
		Timestamp:        time.Now().UTC(),
		Threshold:        e.threshold,
		CostSum:          sum,
		OutcomesWithAsks: len(legs),
		TotalOutcomes:    len(ev.Outcomes),
		Incomplete:       len(legs) < len(ev.Outcomes),
		Outcomes:         legs,
	}
	if opp.Incomplete {
		e.logger.Warn("opportunity with partial book coverage",
			slog.String("event_id", ev.EventID),
			slog.Int("outcomes_with_asks", len(legs)),
			slog.Int("total_outcomes", len(ev.Outcomes)),
		)
	}
	return opp
}
