// Package ingest wires the stream, the market graph, the evaluator, and the
// journals into the single-writer update pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/journal"
	"github.com/alanyoungcy/polyarb/internal/market"
)

// OpportunityPublisher pushes detected opportunities onto an external signal
// channel. Publish failures must not stall ingestion.
type OpportunityPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Config wires a Coordinator. Raw and Bus are optional.
type Config struct {
	Graph     *market.Graph
	Evaluator *arbitrage.Evaluator

	// Opportunities receives one JSON line per detected opportunity.
	Opportunities *journal.Writer

	// Raw, when set, receives every inbound book message verbatim.
	Raw *journal.Writer

	// Bus, when set, additionally publishes each opportunity to Channel.
	Bus     OpportunityPublisher
	Channel string

	Logger *slog.Logger
}

// Coordinator applies book updates to the graph and re-evaluates the owning
// event after each one. It is the graph's only writer: every update mutates
// exactly one book and triggers exactly one evaluation, so detection never
// races the data it reads.
type Coordinator struct {
	graph  *market.Graph
	eval   *arbitrage.Evaluator
	opps   *journal.Writer
	raw    *journal.Writer
	bus    OpportunityPublisher
	chanN  string
	logger *slog.Logger

	applied atomic.Int64
	unknown atomic.Int64
	found   atomic.Int64
}

// NewCoordinator creates the update pipeline.
func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		graph:  cfg.Graph,
		eval:   cfg.Evaluator,
		opps:   cfg.Opportunities,
		raw:    cfg.Raw,
		bus:    cfg.Bus,
		chanN:  cfg.Channel,
		logger: logger.With(slog.String("component", "ingest")),
	}
}

// HandleBook processes one inbound book update end to end: raw capture,
// graph mutation, evaluation, and opportunity emission. Updates for tokens
// outside the loaded universe are counted and dropped.
func (c *Coordinator) HandleBook(ctx context.Context, u domain.BookUpdate) {
	if c.raw != nil && len(u.Raw) > 0 {
		if err := c.raw.AppendRaw(u.Raw); err != nil {
			c.logger.Warn("raw journal write failed", slog.String("error", err.Error()))
		}
	}

	ev, err := c.graph.Apply(u)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownToken) {
			c.unknown.Add(1)
			c.logger.Debug("update for unknown token", slog.String("asset_id", u.AssetID))
			return
		}
		c.logger.Warn("book update rejected",
			slog.String("asset_id", u.AssetID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.applied.Add(1)

	opp := c.eval.CheckEvent(ev)
	if opp == nil {
		return
	}
	c.found.Add(1)
	c.emit(ctx, opp)
}

func (c *Coordinator) emit(ctx context.Context, opp *domain.Opportunity) {
	c.logger.Info("arbitrage opportunity",
		slog.String("id", opp.ID),
		slog.String("event_id", opp.EventID),
		slog.String("event_title", opp.EventTitle),
		slog.String("cost_sum", opp.CostSum.String()),
		slog.String("threshold", opp.Threshold.String()),
		slog.Bool("incomplete", opp.Incomplete),
	)

	if c.opps != nil {
		if err := c.opps.Append(opp); err != nil {
			c.logger.Error("opportunity journal write failed", slog.String("error", err.Error()))
		}
	}

	if c.bus != nil {
		payload, err := json.Marshal(opp)
		if err != nil {
			c.logger.Warn("opportunity encode failed", slog.String("error", err.Error()))
			return
		}
		if err := c.bus.Publish(ctx, c.chanN, payload); err != nil {
			c.logger.Warn("opportunity publish failed", slog.String("error", err.Error()))
		}
	}
}

// Stats reports lifetime pipeline counters.
func (c *Coordinator) Stats() (applied, unknown, found int64) {
	return c.applied.Load(), c.unknown.Load(), c.found.Load()
}
