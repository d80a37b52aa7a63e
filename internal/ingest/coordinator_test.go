package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/journal"
	"github.com/alanyoungcy/polyarb/internal/market"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturedPublish struct {
	channel string
	payload []byte
}

type fakeBus struct {
	published []capturedPublish
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, capturedPublish{channel, payload})
	return nil
}

func threeOutcomeGraph(t *testing.T) *market.Graph {
	t.Helper()
	g := market.NewGraph(2, testLogger())
	_, err := g.AddEvent(market.EventDefinition{
		EventID: "ev-1",
		Title:   "Three-way race",
		Outcomes: []market.OutcomeDefinition{
			{Title: "Alice", MarketID: "m1", Tokens: market.TokenPair{Yes: "t1y", No: "t1n"}},
			{Title: "Bob", MarketID: "m2", Tokens: market.TokenPair{Yes: "t2y", No: "t2n"}},
			{Title: "Carol", MarketID: "m3", Tokens: market.TokenPair{Yes: "t3y", No: "t3n"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func askUpdate(token, price string) domain.BookUpdate {
	return domain.BookUpdate{
		AssetID:    token,
		Asks:       []domain.RawLevel{{Price: price, Size: "10"}},
		ReceivedAt: time.Now().UTC(),
		Raw:        []byte(`{"event_type":"book","asset_id":"` + token + `"}`),
	}
}

func readJournalLines(t *testing.T, path string) []domain.Opportunity {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var out []domain.Opportunity
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var opp domain.Opportunity
		if err := json.Unmarshal(sc.Bytes(), &opp); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		out = append(out, opp)
	}
	return out
}

func TestCoordinator_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	oppPath := filepath.Join(dir, "opps.jsonl")
	opps, err := journal.Open(oppPath)
	if err != nil {
		t.Fatal(err)
	}
	defer opps.Close()

	bus := &fakeBus{}
	coord := NewCoordinator(Config{
		Graph:         threeOutcomeGraph(t),
		Evaluator:     arbitrage.NewEvaluator(decimal.RequireFromString("0.99"), testLogger()),
		Opportunities: opps,
		Bus:           bus,
		Channel:       "opportunities",
		Logger:        testLogger(),
	})

	ctx := context.Background()
	// First two updates leave the third book empty: those evaluations are
	// incomplete but still below threshold, so they emit flagged records.
	coord.HandleBook(ctx, askUpdate("t1y", "0.40"))
	coord.HandleBook(ctx, askUpdate("t2y", "0.30"))
	coord.HandleBook(ctx, askUpdate("t3y", "0.20"))

	records := readJournalLines(t, oppPath)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	last := records[2]
	if last.Incomplete {
		t.Error("final record covers all outcomes, must not be incomplete")
	}
	if !last.CostSum.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("cost sum = %s, want 0.9", last.CostSum)
	}
	if len(last.Outcomes) != 3 {
		t.Errorf("legs = %d, want 3", len(last.Outcomes))
	}
	if last.EventID != "ev-1" || last.EventTitle != "Three-way race" {
		t.Errorf("record identity: %+v", last)
	}

	if !records[0].Incomplete || records[0].OutcomesWithAsks != 1 {
		t.Errorf("first record should be incomplete with 1 leg: %+v", records[0])
	}
	if !records[1].Incomplete || records[1].OutcomesWithAsks != 2 {
		t.Errorf("second record should be incomplete with 2 legs: %+v", records[1])
	}

	if len(bus.published) != 3 {
		t.Fatalf("published %d times, want 3", len(bus.published))
	}
	if bus.published[0].channel != "opportunities" {
		t.Errorf("channel = %s", bus.published[0].channel)
	}
	var fromBus domain.Opportunity
	if err := json.Unmarshal(bus.published[2].payload, &fromBus); err != nil {
		t.Fatalf("decode bus payload: %v", err)
	}
	if fromBus.ID != last.ID {
		t.Error("bus payload must match the journaled record")
	}

	applied, unknown, found := coord.Stats()
	if applied != 3 || unknown != 0 || found != 3 {
		t.Errorf("stats = %d/%d/%d, want 3/0/3", applied, unknown, found)
	}
}

func TestCoordinator_AboveThresholdEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	oppPath := filepath.Join(dir, "opps.jsonl")
	opps, _ := journal.Open(oppPath)
	defer opps.Close()

	coord := NewCoordinator(Config{
		Graph:         threeOutcomeGraph(t),
		Evaluator:     arbitrage.NewEvaluator(decimal.RequireFromString("0.99"), testLogger()),
		Opportunities: opps,
		Logger:        testLogger(),
	})

	ctx := context.Background()
	coord.HandleBook(ctx, askUpdate("t1y", "0.50"))
	coord.HandleBook(ctx, askUpdate("t2y", "0.40"))
	coord.HandleBook(ctx, askUpdate("t3y", "0.30"))

	// 0.50 alone and 0.50+0.40 qualify while books are filling; the full sum
	// 1.20 does not. Only the first two evaluations emit.
	records := readJournalLines(t, oppPath)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if !r.Incomplete {
			t.Errorf("partial-coverage record not flagged: %+v", r)
		}
	}
}

func TestCoordinator_UnknownTokenCounted(t *testing.T) {
	coord := NewCoordinator(Config{
		Graph:     threeOutcomeGraph(t),
		Evaluator: arbitrage.NewEvaluator(decimal.RequireFromString("0.99"), testLogger()),
		Logger:    testLogger(),
	})

	coord.HandleBook(context.Background(), askUpdate("stranger", "0.10"))

	applied, unknown, found := coord.Stats()
	if applied != 0 || unknown != 1 || found != 0 {
		t.Errorf("stats = %d/%d/%d, want 0/1/0", applied, unknown, found)
	}
}

func TestCoordinator_RawJournal(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.jsonl")
	raw, _ := journal.Open(rawPath)
	defer raw.Close()

	coord := NewCoordinator(Config{
		Graph:     threeOutcomeGraph(t),
		Evaluator: arbitrage.NewEvaluator(decimal.RequireFromString("0.99"), testLogger()),
		Raw:       raw,
		Logger:    testLogger(),
	})

	// Raw capture happens before routing, so even unknown tokens land.
	coord.HandleBook(context.Background(), askUpdate("t1y", "0.40"))
	coord.HandleBook(context.Background(), askUpdate("stranger", "0.10"))

	data, err := os.ReadFile(rawPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("raw journal has %d lines, want 2", lines)
	}
}
