// Package render prints periodic order-book snapshots for terminal
// monitoring. Output is advisory: only the opportunity journal is durable.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/market"
)

// Printer renders a per-event book table at a fixed interval. It reads the
// graph while the coordinator writes it; a snapshot may interleave with an
// update in flight, which is acceptable for a monitoring view.
type Printer struct {
	graph    *market.Graph
	interval time.Duration
	out      io.Writer
	logger   *slog.Logger
}

// NewPrinter creates a printer writing to out every interval. An interval of
// zero or less disables rendering; Run then just blocks until ctx ends.
func NewPrinter(graph *market.Graph, interval time.Duration, out io.Writer, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Printer{
		graph:    graph,
		interval: interval,
		out:      out,
		logger:   logger.With(slog.String("component", "render")),
	}
}

// Run renders until ctx is cancelled.
func (p *Printer) Run(ctx context.Context) error {
	if p.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Render()
		}
	}
}

// Render writes one snapshot of every loaded event.
func (p *Printer) Render() {
	now := time.Now().UTC()
	fmt.Fprintf(p.out, "\n=== %s ===\n", now.Format(time.RFC3339))
	for _, ev := range p.graph.Events() {
		p.renderEvent(ev, now)
	}
}

func (p *Printer) renderEvent(ev *domain.Event, now time.Time) {
	fmt.Fprintf(p.out, "\n%s (%s)\n", ev.Title, ev.EventID)

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tSIDE\tBEST BID\t2ND BID\tBEST ASK\t2ND ASK\tSPREAD\tUPDATED")
	for _, id := range sortedMarketIDs(ev) {
		outcome := ev.Outcomes[id]
		writeSideRow(tw, outcome.Title, "YES", outcome.Yes, now)
		writeSideRow(tw, "", "NO", outcome.No, now)
	}
	tw.Flush()
}

func writeSideRow(tw *tabwriter.Writer, title, label string, side *domain.OutcomeSide, now time.Time) {
	if side == nil || side.Book == nil {
		fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\n", title, label)
		return
	}
	book := side.Book

	bestBid := cell(book.Bids.Best())
	secondBid := cell(book.Bids.Level(1))
	bestAsk := cell(book.Asks.Best())
	secondAsk := cell(book.Asks.Level(1))

	spread := "-"
	if bid, ok := book.Bids.Best(); ok {
		if ask, ok2 := book.Asks.Best(); ok2 {
			spread = ask.Price.Sub(bid.Price).StringFixed(2)
		}
	}

	age := "-"
	if book.Updated() {
		age = now.Sub(book.LastUpdated).Truncate(time.Second).String() + " ago"
	}

	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		title, label, bestBid, secondBid, bestAsk, secondAsk, spread, age)
}

// cell formats a level as "price x size", or "-" when the level is absent.
// Prices render with two fixed decimals so the columns stay aligned.
func cell(lvl domain.PriceLevel, ok bool) string {
	if !ok {
		return "-"
	}
	return lvl.Price.StringFixed(2) + " x " + lvl.Size.String()
}

func sortedMarketIDs(ev *domain.Event) []string {
	ids := make([]string, 0, len(ev.Outcomes))
	for id := range ev.Outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
