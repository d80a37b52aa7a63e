package domain

import "time"

// Side identifies the YES or NO leg of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// OutcomeSide is one tradable instrument: the YES or NO leg of an outcome.
type OutcomeSide struct {
	TokenID string
	Book    *OrderBook
}

// Outcome is one binary market within an event.
type Outcome struct {
	Title    string
	MarketID string
	Yes      *OutcomeSide
	No       *OutcomeSide
}

// SideFor returns the outcome's YES or NO leg, or nil for an unknown side.
func (o *Outcome) SideFor(s Side) *OutcomeSide {
	switch s {
	case SideYes:
		return o.Yes
	case SideNo:
		return o.No
	default:
		return nil
	}
}

// Event is a set of mutually relevant binary markets sharing one resolution
// context, keyed by market ID.
type Event struct {
	EventID  string
	Title    string
	Outcomes map[string]*Outcome
}

// TokenRef locates the instrument a token ID belongs to.
type TokenRef struct {
	EventID  string
	MarketID string
	Side     Side
}

// BookUpdate is the typed update value produced by the stream layer and
// consumed only by the ingestion coordinator.
type BookUpdate struct {
	AssetID    string
	Bids       []RawLevel
	Asks       []RawLevel
	ReceivedAt time.Time

	// Raw is the verbatim wire message, retained for the optional raw
	// update journal.
	Raw []byte
}
