package pipeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

//go:embed fallback.json
var fallbackJSON []byte

var (
	fallbackOnce sync.Once
	fallbackHits []types.SymbolHit
)

// FallbackSymbols returns a copy of the built-in dataset used when no
// backend delivers anything
func FallbackSymbols() []types.SymbolHit {
	fallbackOnce.Do(func() {
		hits, err := parseFallback(fallbackJSON)
		if err != nil {
			slog.Error("invalid embedded fallback dataset", slog.String("error", err.Error()))
			return
		}
		fallbackHits = hits
	})
	return types.CloneHits(fallbackHits)
}

func parseFallback(data []byte) ([]types.SymbolHit, error) {
	var hits []types.SymbolHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("decoding fallback dataset: %w", err)
	}
	for i := range hits {
		if err := hits[i].Validate(); err != nil {
			return nil, fmt.Errorf("fallback symbol %d: %w", i, err)
		}
	}
	return hits, nil
}
