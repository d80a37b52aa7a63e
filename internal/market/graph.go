// Package market owns the in-memory event/outcome/order-book hierarchy and
// the token index that routes stream updates into it. The Graph is mutated by
// exactly one writer (the ingestion coordinator); concurrent readers such as
// the snapshot renderer tolerate mid-update reads by design.
package market

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Graph holds every loaded event and the token index over their instruments.
type Graph struct {
	maxLevels int
	logger    *slog.Logger

	events map[string]*domain.Event
	tokens map[string]domain.TokenRef
}

// NewGraph creates an empty graph whose order books retain maxLevels levels
// per side.
func NewGraph(maxLevels int, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		maxLevels: maxLevels,
		logger:    logger.With(slog.String("component", "market_graph")),
		events:    make(map[string]*domain.Event),
		tokens:    make(map[string]domain.TokenRef),
	}
}

// AddEvent constructs an event with fresh order books from its definition and
// registers its tokens in the index. Re-adding an event ID replaces that
// event; mappings for other events are unaffected. The index only grows.
func (g *Graph) AddEvent(def EventDefinition) (*domain.Event, error) {
	eventID := string(def.EventID)
	if eventID == "" {
		return nil, fmt.Errorf("market: event definition has no id")
	}

	ev := &domain.Event{
		EventID:  eventID,
		Title:    def.Title,
		Outcomes: make(map[string]*domain.Outcome, len(def.Outcomes)),
	}

	indexed := 0
	for _, od := range def.Outcomes {
		if od.MarketID == "" {
			g.logger.Warn("skipping outcome without market_id",
				slog.String("event_id", eventID),
				slog.String("title", od.Title),
			)
			continue
		}
		outcome := &domain.Outcome{
			Title:    od.Title,
			MarketID: od.MarketID,
			Yes:      &domain.OutcomeSide{TokenID: od.Tokens.Yes, Book: domain.NewOrderBook(g.maxLevels)},
			No:       &domain.OutcomeSide{TokenID: od.Tokens.No, Book: domain.NewOrderBook(g.maxLevels)},
		}
		ev.Outcomes[od.MarketID] = outcome

		if od.Tokens.Yes != "" {
			g.tokens[od.Tokens.Yes] = domain.TokenRef{EventID: eventID, MarketID: od.MarketID, Side: domain.SideYes}
			indexed++
		}
		if od.Tokens.No != "" {
			g.tokens[od.Tokens.No] = domain.TokenRef{EventID: eventID, MarketID: od.MarketID, Side: domain.SideNo}
			indexed++
		}
	}

	if len(ev.Outcomes) == 0 {
		return nil, fmt.Errorf("market: event %s has no usable outcomes", eventID)
	}

	g.events[eventID] = ev
	g.logger.Info("event loaded",
		slog.String("event_id", eventID),
		slog.String("title", ev.Title),
		slog.Int("outcomes", len(ev.Outcomes)),
		slog.Int("tokens", indexed),
	)
	return ev, nil
}

// Load adds every definition to the graph and returns the number of events
// loaded. Definitions that fail to load are logged and skipped; Load only
// errors when nothing loaded at all.
func (g *Graph) Load(defs []EventDefinition) (int, error) {
	loaded := 0
	for _, def := range defs {
		if _, err := g.AddEvent(def); err != nil {
			g.logger.Warn("skipping event definition", slog.String("error", err.Error()))
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return 0, domain.ErrNoEvents
	}
	return loaded, nil
}

// Event returns a loaded event by ID.
func (g *Graph) Event(id string) (*domain.Event, bool) {
	ev, ok := g.events[id]
	return ev, ok
}

// Events returns all loaded events ordered by event ID.
func (g *Graph) Events() []*domain.Event {
	out := make([]*domain.Event, 0, len(g.events))
	for _, ev := range g.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out
}

// Resolve looks up the instrument a token ID belongs to.
func (g *Graph) Resolve(tokenID string) (domain.TokenRef, bool) {
	ref, ok := g.tokens[tokenID]
	return ref, ok
}

// TokenIDs returns every indexed token ID, sorted for deterministic
// subscription sharding.
func (g *Graph) TokenIDs() []string {
	out := make([]string, 0, len(g.tokens))
	for id := range g.tokens {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TokenIDsForEvent returns the indexed token IDs belonging to one event.
func (g *Graph) TokenIDsForEvent(eventID string) []string {
	var out []string
	for id, ref := range g.tokens {
		if ref.EventID == eventID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Apply routes a book update to its order book and mutates it in place,
// returning the owning event so the caller can re-evaluate it. Updates for
// tokens outside any loaded event return ErrUnknownToken.
func (g *Graph) Apply(u domain.BookUpdate) (*domain.Event, error) {
	ref, ok := g.tokens[u.AssetID]
	if !ok {
		return nil, domain.ErrUnknownToken
	}
	ev, ok := g.events[ref.EventID]
	if !ok {
		return nil, fmt.Errorf("market: token %s maps to missing event %s: %w", u.AssetID, ref.EventID, domain.ErrNotFound)
	}
	outcome, ok := ev.Outcomes[ref.MarketID]
	if !ok {
		return nil, fmt.Errorf("market: token %s maps to missing market %s: %w", u.AssetID, ref.MarketID, domain.ErrNotFound)
	}
	side := outcome.SideFor(ref.Side)
	if side == nil {
		return nil, fmt.Errorf("market: token %s: %w: %s", u.AssetID, domain.ErrUnknownSide, ref.Side)
	}

	if dropped := side.Book.Update(u.Bids, u.Asks, u.ReceivedAt); dropped > 0 {
		g.logger.Warn("dropped unparseable levels",
			slog.String("event_id", ev.EventID),
			slog.String("market_id", outcome.MarketID),
			slog.Int("dropped", dropped),
		)
	}
	return ev, nil
}
