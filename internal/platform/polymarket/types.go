package polymarket

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/market"
)

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the subscription payload sent once per connection, naming
// every instrument assigned to it.
type WSCommand struct {
	Type     string   `json:"type"` // always "MARKET"
	AssetIDs []string `json:"assets_ids"`
}

// wsEnvelope carries the type tag used to route an inbound message.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// BookMessage is a full per-side top-of-book snapshot for one asset,
// delivered on the market channel with event_type "book".
type BookMessage struct {
	EventType string            `json:"event_type"`
	AssetID   string            `json:"asset_id"`
	Market    string            `json:"market"`
	Bids      []domain.RawLevel `json:"bids"`
	Asks      []domain.RawLevel `json:"asks"`
	Timestamp string            `json:"timestamp"`
	Hash      string            `json:"hash"`
}

// splitFrame returns the individual JSON messages in a frame, which may
// encode either a single object or an array of objects.
func splitFrame(raw []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var batch []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIEvent is an event as returned by the Gamma API. An event groups one or
// more related markets.
type APIEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Active    flexBool    `json:"active"`
	Closed    bool        `json:"closed"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Markets   []APIMarket `json:"markets"`
}

// APIMarket is a market entry inside a Gamma event response.
type APIMarket struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	ConditionID  string `json:"condition_id"`
	Resolved     bool   `json:"resolved"`
	ClobTokenIDs string `json:"clobTokenIds"` // JSON-encoded: e.g. "[\"123\",\"456\"]"
}

// TokenIDs decodes the JSON-encoded clobTokenIds field. The first entry is
// the YES token, the second the NO token.
func (m *APIMarket) TokenIDs() (yes, no string, ok bool) {
	if m.ClobTokenIDs == "" {
		return "", "", false
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil || len(ids) < 2 {
		return "", "", false
	}
	return ids[0], ids[1], true
}

// ToDefinition converts a Gamma event into the definition document consumed
// by the market graph. Markets without decodable token IDs are skipped; ok is
// false when nothing usable remains.
func (e *APIEvent) ToDefinition() (market.EventDefinition, bool) {
	def := market.EventDefinition{EventID: market.FlexID(e.ID), Title: e.Title}
	if e.ID == "" {
		return def, false
	}
	for _, m := range e.Markets {
		yes, no, ok := m.TokenIDs()
		if !ok {
			continue
		}
		def.Outcomes = append(def.Outcomes, market.OutcomeDefinition{
			Title:    m.Question,
			MarketID: m.ID,
			Tokens:   market.TokenPair{Yes: yes, No: no},
		})
	}
	return def, len(def.Outcomes) > 0
}
