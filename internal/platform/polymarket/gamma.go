package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Crawl defaults, used when GammaConfig leaves the knobs unset.
const (
	defaultPageLimit     = 500
	defaultDetailBatch   = 20
	defaultDetailWorkers = 5
	defaultVerifyBatch   = 50
)

// GammaConfig tunes the discovery crawl. Zero values fall back to the
// defaults above.
type GammaConfig struct {
	BaseURL string

	// PageLimit is the page size used when crawling the event list.
	PageLimit int

	// DetailBatch is how many event IDs a single detail request carries;
	// DetailWorkers bounds concurrent detail requests.
	DetailBatch   int
	DetailWorkers int

	// VerifyBatch is how many event IDs a market-cards request carries.
	VerifyBatch int
}

// GammaClient talks to the Gamma REST API used for event discovery. It is
// read-only and unauthenticated.
type GammaClient struct {
	cfg        GammaConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a discovery client for the given Gamma host.
func NewGammaClient(cfg GammaConfig, logger *slog.Logger) *GammaClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.DetailBatch <= 0 {
		cfg.DetailBatch = defaultDetailBatch
	}
	if cfg.DetailWorkers <= 0 {
		cfg.DetailWorkers = defaultDetailWorkers
	}
	if cfg.VerifyBatch <= 0 {
		cfg.VerifyBatch = defaultVerifyBatch
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GammaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "gamma")),
	}
}

// ListActiveEventIDs pages through the active, unclosed event listing and
// returns every event ID. Pagination stops at the first short page.
func (g *GammaClient) ListActiveEventIDs(ctx context.Context) ([]string, error) {
	var ids []string
	offset := 0
	for {
		q := url.Values{}
		q.Set("active", "true")
		q.Set("closed", "false")
		q.Set("limit", fmt.Sprint(g.cfg.PageLimit))
		q.Set("offset", fmt.Sprint(offset))

		var page []APIEvent
		if err := g.doGet(ctx, "/events?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: list events offset=%d: %w", offset, err)
		}
		for _, ev := range page {
			if ev.ID != "" {
				ids = append(ids, ev.ID)
			}
		}
		g.logger.Debug("event page fetched",
			slog.Int("offset", offset),
			slog.Int("page_size", len(page)),
		)
		if len(page) < g.cfg.PageLimit {
			break
		}
		offset += g.cfg.PageLimit
	}
	g.logger.Info("active events listed", slog.Int("count", len(ids)))
	return ids, nil
}

// GetEventDetails fetches full event records, markets included, for the
// given IDs. Requests go out in batches with a bounded number in flight. The
// result order follows event IDs, not the input order.
func (g *GammaClient) GetEventDetails(ctx context.Context, ids []string) ([]APIEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	batches := chunkIDs(ids, g.cfg.DetailBatch)
	results := make([][]APIEvent, len(batches))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.DetailWorkers)
	for i, batch := range batches {
		i, batch := i, batch
		eg.Go(func() error {
			q := url.Values{}
			for _, id := range batch {
				q.Add("id", id)
			}
			var events []APIEvent
			if err := g.doGet(gctx, "/events?"+q.Encode(), &events); err != nil {
				return fmt.Errorf("polymarket/gamma: event details batch %d: %w", i, err)
			}
			results[i] = events
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []APIEvent
	for _, batch := range results {
		out = append(out, batch...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VerifyActive checks which of the given events the venue still serves market
// cards for and returns the confirmed subset of IDs.
func (g *GammaClient) VerifyActive(ctx context.Context, ids []string) (map[string]bool, error) {
	confirmed := make(map[string]bool, len(ids))
	for _, batch := range chunkIDs(ids, g.cfg.VerifyBatch) {
		q := url.Values{}
		for _, id := range batch {
			q.Add("id", id)
		}
		var cards []struct {
			ID string `json:"id"`
		}
		if err := g.doGet(ctx, "/market-cards?"+q.Encode(), &cards); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: verify batch: %w", err)
		}
		for _, card := range cards {
			if card.ID != "" {
				confirmed[card.ID] = true
			}
		}
	}
	g.logger.Info("events verified",
		slog.Int("checked", len(ids)),
		slog.Int("confirmed", len(confirmed)),
	)
	return confirmed, nil
}

func (g *GammaClient) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// checkHTTPStatus maps HTTP error statuses onto domain sentinel errors.
func checkHTTPStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, domain.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, domain.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, domain.ErrRateLimited)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
