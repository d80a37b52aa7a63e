// Package app provides the top-level application lifecycle for the arbitrage
// monitor. It wires the market graph, the stream feed, the evaluator, the
// journals, and the optional signal bus, and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/cache/redis"
	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/ingest"
	"github.com/alanyoungcy/polyarb/internal/journal"
	"github.com/alanyoungcy/polyarb/internal/market"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
	"github.com/alanyoungcy/polyarb/internal/render"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run selects the operating mode and blocks until the context is cancelled
// or the mode finishes.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	switch strings.ToLower(a.cfg.Mode) {
	case "monitor":
		return a.runMonitor(ctx)
	case "discover":
		return a.runDiscover(ctx)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runMonitor loads the event universe, subscribes the stream, and evaluates
// every book update until shutdown.
func (a *App) runMonitor(ctx context.Context) error {
	defs, err := a.loadDefinitions()
	if err != nil {
		return err
	}

	graph := market.NewGraph(domain.DefaultMaxLevels, a.logger)
	loaded, err := graph.Load(defs)
	if err != nil {
		return fmt.Errorf("app: load events: %w", err)
	}
	a.logger.Info("event universe loaded", slog.Int("events", loaded))

	tokens := a.selectTokens(graph)
	if len(tokens) == 0 {
		return fmt.Errorf("app: no tokens to subscribe: %w", domain.ErrNoEvents)
	}

	opps, err := journal.Open(a.cfg.Arbitrage.OutputFile)
	if err != nil {
		return fmt.Errorf("app: open opportunity journal: %w", err)
	}
	a.closers = append(a.closers, func() { opps.Close() })

	var raw *journal.Writer
	if a.cfg.Feed.RawLogFile != "" {
		raw, err = journal.Open(a.cfg.Feed.RawLogFile)
		if err != nil {
			return fmt.Errorf("app: open raw journal: %w", err)
		}
		a.closers = append(a.closers, func() { raw.Close() })
	}

	var bus ingest.OpportunityPublisher
	if a.cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("app: connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { rc.Close() })
		bus = redis.NewSignalBus(rc)
		a.logger.Info("signal bus enabled",
			slog.String("addr", a.cfg.Redis.Addr),
			slog.String("channel", a.cfg.Redis.Channel),
		)
	}

	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(a.cfg.Arbitrage.Threshold), a.logger)
	coord := ingest.NewCoordinator(ingest.Config{
		Graph:         graph,
		Evaluator:     eval,
		Opportunities: opps,
		Raw:           raw,
		Bus:           bus,
		Channel:       a.cfg.Redis.Channel,
		Logger:        a.logger,
	})

	multi, err := feed.NewMultiClient(feed.MultiClientConfig{
		URL:          a.cfg.Polymarket.WsHost,
		Tokens:       tokens,
		ChunkSize:    a.cfg.Feed.ChunkSize,
		PingInterval: time.Duration(a.cfg.Feed.PingIntervalSec) * time.Second,
		OnBook:       func(u domain.BookUpdate) { coord.HandleBook(ctx, u) },
		Logger:       a.logger,
	})
	if err != nil {
		return fmt.Errorf("app: build feed: %w", err)
	}

	printer := render.NewPrinter(graph,
		time.Duration(a.cfg.Render.PrintIntervalSec)*time.Second, os.Stdout, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return multi.Run(gctx) })
	g.Go(func() error { return printer.Run(gctx) })

	err = g.Wait()
	applied, unknown, found := coord.Stats()
	a.logger.Info("monitor stopped",
		slog.Int64("updates_applied", applied),
		slog.Int64("unknown_tokens", unknown),
		slog.Int64("opportunities", found),
	)
	return err
}

// loadDefinitions reads the event universe from the configured file or the
// inline document.
func (a *App) loadDefinitions() ([]market.EventDefinition, error) {
	if a.cfg.Events.Inline != "" {
		defs, err := market.ReadDefinitions(strings.NewReader(a.cfg.Events.Inline), a.logger)
		if err != nil {
			return nil, fmt.Errorf("app: read inline definitions: %w", err)
		}
		return defs, nil
	}
	defs, err := market.ReadDefinitionsFile(a.cfg.Events.File, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: read definitions: %w", err)
	}
	return defs, nil
}

// selectTokens returns the subscription universe, narrowed to one event when
// events.event_id is configured.
func (a *App) selectTokens(graph *market.Graph) []string {
	if a.cfg.Events.EventID != "" {
		a.logger.Info("restricting to single event", slog.String("event_id", a.cfg.Events.EventID))
		return graph.TokenIDsForEvent(a.cfg.Events.EventID)
	}
	return graph.TokenIDs()
}

// runDiscover crawls the Gamma API for active multi-outcome events and
// writes an event-definition document usable by monitor mode.
func (a *App) runDiscover(ctx context.Context) error {
	gamma := polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL:       a.cfg.Polymarket.GammaHost,
		PageLimit:     a.cfg.Discovery.PageLimit,
		DetailBatch:   a.cfg.Discovery.BatchSize,
		DetailWorkers: a.cfg.Discovery.Workers,
		VerifyBatch:   a.cfg.Discovery.VerifyBatchSize,
	}, a.logger)

	ids, err := gamma.ListActiveEventIDs(ctx)
	if err != nil {
		return fmt.Errorf("app: list events: %w", err)
	}
	events, err := gamma.GetEventDetails(ctx, ids)
	if err != nil {
		return fmt.Errorf("app: event details: %w", err)
	}

	// Only multi-outcome events can violate the cross-outcome invariant.
	var candidates []polymarket.APIEvent
	var candidateIDs []string
	for _, ev := range events {
		if bool(ev.Active) && !ev.Closed && len(ev.Markets) >= 2 {
			candidates = append(candidates, ev)
			candidateIDs = append(candidateIDs, ev.ID)
		}
	}
	confirmed, err := gamma.VerifyActive(ctx, candidateIDs)
	if err != nil {
		return fmt.Errorf("app: verify events: %w", err)
	}

	out, err := journal.Open(a.cfg.Discovery.OutputFile)
	if err != nil {
		return fmt.Errorf("app: open discovery output: %w", err)
	}
	defer out.Close()

	written := 0
	for _, ev := range candidates {
		if !confirmed[ev.ID] {
			continue
		}
		def, ok := ev.ToDefinition()
		if !ok {
			a.logger.Warn("skipping event without usable markets",
				slog.String("event_id", ev.ID),
				slog.String("title", ev.Title),
			)
			continue
		}
		if err := out.Append(def); err != nil {
			return fmt.Errorf("app: write definition: %w", err)
		}
		written++
	}

	a.logger.Info("discovery finished",
		slog.Int("listed", len(ids)),
		slog.Int("multi_outcome", len(candidates)),
		slog.Int("written", written),
		slog.String("output", a.cfg.Discovery.OutputFile),
	)
	return nil
}
