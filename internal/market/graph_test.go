package market

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func testDef(eventID string) EventDefinition {
	return EventDefinition{
		EventID: FlexID(eventID),
		Title:   "Test Event " + eventID,
		Outcomes: []OutcomeDefinition{
			{Title: "Alice", MarketID: "m1", Tokens: TokenPair{Yes: eventID + "-t1y", No: eventID + "-t1n"}},
			{Title: "Bob", MarketID: "m2", Tokens: TokenPair{Yes: eventID + "-t2y", No: eventID + "-t2n"}},
		},
	}
}

func TestGraph_AddEvent(t *testing.T) {
	g := NewGraph(2, testLogger())
	ev, err := g.AddEvent(testDef("ev-1"))
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if len(ev.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(ev.Outcomes))
	}

	// Every token must resolve, and every resolution must round-trip back to
	// a live instrument.
	for _, tokenID := range g.TokenIDs() {
		ref, ok := g.Resolve(tokenID)
		if !ok {
			t.Fatalf("token %s not resolvable", tokenID)
		}
		got, ok := g.Event(ref.EventID)
		if !ok {
			t.Fatalf("token %s resolves to missing event %s", tokenID, ref.EventID)
		}
		outcome, ok := got.Outcomes[ref.MarketID]
		if !ok {
			t.Fatalf("token %s resolves to missing market %s", tokenID, ref.MarketID)
		}
		side := outcome.SideFor(ref.Side)
		if side == nil || side.TokenID != tokenID {
			t.Errorf("token %s round-trips to wrong instrument", tokenID)
		}
	}
	if got := len(g.TokenIDs()); got != 4 {
		t.Errorf("indexed tokens = %d, want 4", got)
	}
}

func TestGraph_AddEvent_SkipsOutcomesWithoutMarketID(t *testing.T) {
	g := NewGraph(2, testLogger())
	def := testDef("ev-1")
	def.Outcomes = append(def.Outcomes, OutcomeDefinition{Title: "orphan"})

	ev, err := g.AddEvent(def)
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if len(ev.Outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2 (orphan skipped)", len(ev.Outcomes))
	}
}

func TestGraph_AddEvent_NoUsableOutcomes(t *testing.T) {
	g := NewGraph(2, testLogger())
	_, err := g.AddEvent(EventDefinition{EventID: "ev-bad", Outcomes: []OutcomeDefinition{{Title: "x"}}})
	if err == nil {
		t.Fatal("expected error for event with no usable outcomes")
	}
}

func TestGraph_ReaddReplacesEventOnly(t *testing.T) {
	g := NewGraph(2, testLogger())
	if _, err := g.AddEvent(testDef("ev-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddEvent(testDef("ev-2")); err != nil {
		t.Fatal(err)
	}

	// Re-add ev-1 with a different title; ev-2's tokens must survive.
	def := testDef("ev-1")
	def.Title = "Renamed"
	if _, err := g.AddEvent(def); err != nil {
		t.Fatal(err)
	}

	ev, _ := g.Event("ev-1")
	if ev.Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", ev.Title)
	}
	if _, ok := g.Resolve("ev-2-t1y"); !ok {
		t.Error("ev-2 token lost after re-adding ev-1")
	}
	if got := len(g.Events()); got != 2 {
		t.Errorf("events = %d, want 2", got)
	}
}

func TestGraph_Load(t *testing.T) {
	t.Run("skips bad definitions", func(t *testing.T) {
		g := NewGraph(2, testLogger())
		defs := []EventDefinition{testDef("ev-1"), {EventID: "bad"}}
		loaded, err := g.Load(defs)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if loaded != 1 {
			t.Errorf("loaded = %d, want 1", loaded)
		}
	})

	t.Run("errors when nothing loads", func(t *testing.T) {
		g := NewGraph(2, testLogger())
		_, err := g.Load([]EventDefinition{{EventID: "bad"}})
		if !errors.Is(err, domain.ErrNoEvents) {
			t.Errorf("err = %v, want ErrNoEvents", err)
		}
	})
}

func TestGraph_Apply(t *testing.T) {
	g := NewGraph(2, testLogger())
	if _, err := g.AddEvent(testDef("ev-1")); err != nil {
		t.Fatal(err)
	}

	t.Run("routes update to the right book", func(t *testing.T) {
		at := time.Now().UTC()
		ev, err := g.Apply(domain.BookUpdate{
			AssetID:    "ev-1-t1y",
			Bids:       []domain.RawLevel{{Price: "0.40", Size: "10"}},
			Asks:       []domain.RawLevel{{Price: "0.60", Size: "5"}},
			ReceivedAt: at,
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if ev.EventID != "ev-1" {
			t.Errorf("owning event = %s, want ev-1", ev.EventID)
		}

		book := ev.Outcomes["m1"].Yes.Book
		if !book.Updated() {
			t.Fatal("target book not updated")
		}
		if ev.Outcomes["m1"].No.Book.Updated() {
			t.Error("NO book of the same outcome must not change")
		}
		if ev.Outcomes["m2"].Yes.Book.Updated() {
			t.Error("other outcome's book must not change")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := g.Apply(domain.BookUpdate{AssetID: "nobody"})
		if !errors.Is(err, domain.ErrUnknownToken) {
			t.Errorf("err = %v, want ErrUnknownToken", err)
		}
	})
}

func TestGraph_TokenIDsForEvent(t *testing.T) {
	g := NewGraph(2, testLogger())
	g.AddEvent(testDef("ev-1"))
	g.AddEvent(testDef("ev-2"))

	ids := g.TokenIDsForEvent("ev-1")
	if len(ids) != 4 {
		t.Fatalf("got %d tokens, want 4", len(ids))
	}
	for _, id := range ids {
		ref, _ := g.Resolve(id)
		if ref.EventID != "ev-1" {
			t.Errorf("token %s belongs to %s", id, ref.EventID)
		}
	}
}
