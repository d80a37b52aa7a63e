// Package feed shards a token universe across stream connections and runs the
// resulting connection set as one unit.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the per-connection subscription cap.
const DefaultChunkSize = 450

// chunkTokens splits tokens into contiguous shards of at most size entries.
// Every token lands in exactly one shard.
func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
	}
	return out
}

// MultiClientConfig configures the sharded connection set.
type MultiClientConfig struct {
	URL          string
	Tokens       []string
	ChunkSize    int
	PingInterval time.Duration
	OnBook       polymarket.BookHandler
	Logger       *slog.Logger
}

// MultiClient fans a token universe out over as many stream connections as
// the per-connection cap requires and supervises them together. Ordering
// holds per token; no order is guaranteed across connections.
type MultiClient struct {
	clients []*polymarket.Client
	logger  *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewMultiClient builds one stream client per token shard.
func NewMultiClient(cfg MultiClientConfig) (*MultiClient, error) {
	if len(cfg.Tokens) == 0 {
		return nil, fmt.Errorf("feed: no tokens to subscribe")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shards := chunkTokens(cfg.Tokens, cfg.ChunkSize)
	clients := make([]*polymarket.Client, 0, len(shards))
	for i, shard := range shards {
		clients = append(clients, polymarket.NewClient(polymarket.ClientConfig{
			URL:          cfg.URL,
			AssetIDs:     shard,
			PingInterval: cfg.PingInterval,
			OnBook:       cfg.OnBook,
			Logger:       logger.With(slog.Int("shard", i)),
		}))
	}

	logger.Info("feed sharded",
		slog.Int("tokens", len(cfg.Tokens)),
		slog.Int("connections", len(clients)),
	)
	return &MultiClient{
		clients: clients,
		logger:  logger.With(slog.String("component", "feed")),
	}, nil
}

// Connections returns how many stream connections the feed runs.
func (m *MultiClient) Connections() int { return len(m.clients) }

// Start launches every connection and blocks until each has streamed its
// first subscription or the context ends. Individual connections keep
// reconnecting on their own after Start returns.
func (m *MultiClient) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	m.group = g
	for _, c := range m.clients {
		c := c
		g.Go(func() error { return c.Run(gctx) })
	}

	for _, c := range m.clients {
		select {
		case <-c.Ready():
		case <-gctx.Done():
			return gctx.Err()
		}
	}
	m.logger.Info("all connections streaming", slog.Int("connections", len(m.clients)))
	return nil
}

// Wait blocks until every connection has stopped.
func (m *MultiClient) Wait() error {
	if m.group == nil {
		return nil
	}
	err := m.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop cancels every connection and waits for them to exit.
func (m *MultiClient) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	return m.Wait()
}

// Run starts the feed and blocks until it stops.
func (m *MultiClient) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	return m.Wait()
}
