package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeTokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("tok-%04d", i)
	}
	return out
}

func TestChunkTokens(t *testing.T) {
	t.Run("1000 over 450", func(t *testing.T) {
		shards := chunkTokens(makeTokens(1000), 450)
		if len(shards) != 3 {
			t.Fatalf("got %d shards, want 3", len(shards))
		}
		for i, want := range []int{450, 450, 100} {
			if len(shards[i]) != want {
				t.Errorf("shard %d size = %d, want %d", i, len(shards[i]), want)
			}
		}
	})

	t.Run("every token lands exactly once", func(t *testing.T) {
		tokens := makeTokens(1000)
		seen := make(map[string]int)
		for _, shard := range chunkTokens(tokens, 450) {
			for _, tok := range shard {
				seen[tok]++
			}
		}
		if len(seen) != len(tokens) {
			t.Fatalf("saw %d distinct tokens, want %d", len(seen), len(tokens))
		}
		for tok, n := range seen {
			if n != 1 {
				t.Errorf("token %s appeared %d times", tok, n)
			}
		}
	})

	t.Run("exact multiple", func(t *testing.T) {
		shards := chunkTokens(makeTokens(900), 450)
		if len(shards) != 2 {
			t.Errorf("got %d shards, want 2", len(shards))
		}
	})

	t.Run("fits one shard", func(t *testing.T) {
		shards := chunkTokens(makeTokens(10), 450)
		if len(shards) != 1 || len(shards[0]) != 10 {
			t.Errorf("shards = %d", len(shards))
		}
	})

	t.Run("zero size uses default", func(t *testing.T) {
		shards := chunkTokens(makeTokens(DefaultChunkSize+1), 0)
		if len(shards) != 2 {
			t.Errorf("got %d shards, want 2", len(shards))
		}
	})
}

func TestNewMultiClient(t *testing.T) {
	m, err := NewMultiClient(MultiClientConfig{
		URL:       "ws://example.invalid",
		Tokens:    makeTokens(1000),
		ChunkSize: 450,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("NewMultiClient: %v", err)
	}
	if m.Connections() != 3 {
		t.Errorf("connections = %d, want 3", m.Connections())
	}

	if _, err := NewMultiClient(MultiClientConfig{URL: "ws://x", Logger: testLogger()}); err == nil {
		t.Error("empty token universe must error")
	}
}

func TestMultiClient_StartSubscribesEveryShard(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	var mu sync.Mutex
	var subscribed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd struct {
			Type     string   `json:"type"`
			AssetIDs []string `json:"assets_ids"`
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		mu.Lock()
		subscribed = append(subscribed, cmd.AssetIDs...)
		mu.Unlock()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	tokens := makeTokens(10)
	m, err := NewMultiClient(MultiClientConfig{
		URL:       "ws" + strings.TrimPrefix(server.URL, "http"),
		Tokens:    tokens,
		ChunkSize: 4, // 3 connections
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Connections() != 3 {
		t.Fatalf("connections = %d, want 3", m.Connections())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	// Start returns once every client has written its subscribe; the server
	// handlers record the payloads asynchronously, so poll until they land.
	var got []string
	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		got = append(got[:0], subscribed...)
		mu.Unlock()
		if len(got) >= len(tokens) || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	sort.Strings(got)
	if len(got) != len(tokens) {
		t.Fatalf("subscribed %d tokens, want %d", len(got), len(tokens))
	}
	for i := range tokens {
		if got[i] != tokens[i] {
			t.Fatalf("subscribed set mismatch: %v", got)
		}
	}

	if err := m.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
