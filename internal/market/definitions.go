package market

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// FlexID unmarshals from a JSON number or string, since event IDs appear as
// integers in crawler output and as strings elsewhere.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// TokenPair names the instrument IDs for the YES and NO legs of an outcome.
type TokenPair struct {
	Yes string `json:"yes"`
	No  string `json:"no"`
}

// OutcomeDefinition is one outcome entry in an event definition document.
type OutcomeDefinition struct {
	Title    string    `json:"title"`
	MarketID string    `json:"market_id"`
	Tokens   TokenPair `json:"websocket_tokens"`
}

// EventDefinition is the static event document produced by the discovery
// pipeline and consumed at load time.
type EventDefinition struct {
	EventID  FlexID              `json:"event_id"`
	Title    string              `json:"title"`
	Outcomes []OutcomeDefinition `json:"outcomes"`
}

// ReadDefinitions decodes event definitions from r. The input may be a JSON
// array of definitions, a single definition object, or JSONL with one
// definition per line. Malformed units are skipped and logged; the
// surrounding units still load.
func ReadDefinitions(r io.Reader, logger *slog.Logger) ([]EventDefinition, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("market: read definitions: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var defs []json.RawMessage
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("market: decode definition array: %w", err)
		}
		out := make([]EventDefinition, 0, len(defs))
		for _, raw := range defs {
			def, err := decodeDefinition(raw)
			if err != nil {
				logger.Warn("skipping malformed event definition", slog.String("error", err.Error()))
				continue
			}
			out = append(out, def)
		}
		return out, nil
	}

	// Single object or JSONL: both decode line-wise, a single pretty-printed
	// object is handled by trying the whole payload first.
	if def, err := decodeDefinition(trimmed); err == nil {
		return []EventDefinition{def}, nil
	}

	var out []EventDefinition
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		def, err := decodeDefinition([]byte(line))
		if err != nil {
			logger.Warn("skipping malformed definition line",
				slog.String("error", err.Error()),
				slog.Int("line_len", len(line)),
			)
			continue
		}
		out = append(out, def)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("market: scan definitions: %w", err)
	}
	return out, nil
}

// ReadDefinitionsFile loads definitions from a JSON or JSONL file.
func ReadDefinitionsFile(path string, logger *slog.Logger) ([]EventDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: open definitions: %w", err)
	}
	defer f.Close()
	return ReadDefinitions(f, logger)
}

func decodeDefinition(raw []byte) (EventDefinition, error) {
	var def EventDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return EventDefinition{}, err
	}
	if def.EventID == "" {
		return EventDefinition{}, fmt.Errorf("definition has no event_id")
	}
	if len(def.Outcomes) == 0 {
		return EventDefinition{}, fmt.Errorf("event %s has no outcomes", def.EventID)
	}
	return def, nil
}
