package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-gate/internal/config"
)

// cachedIdentity mirrors the (id, displayName) tuples stored next to the
// encodings in the cache snapshot.
type cachedIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// cacheSnapshot is the on-disk cache format: parallel arrays of
// encodings and identity tuples, plus the write timestamp.
type cacheSnapshot struct {
	SavedAt    time.Time        `json:"saved_at"`
	Encodings  [][]float64      `json:"encodings"`
	Identities []cachedIdentity `json:"identities"`
}

// SaveCache overwrites the cache file with the given known set. The
// write goes through a temp file and rename so a crash mid-write never
// leaves a truncated cache behind.
func SaveCache(path string, set KnownSet) error {
	snapshot := cacheSnapshot{
		SavedAt:    time.Now(),
		Encodings:  make([][]float64, 0, len(set)),
		Identities: make([]cachedIdentity, 0, len(set)),
	}
	for _, id := range set {
		snapshot.Encodings = append(snapshot.Encodings, id.Embedding)
		snapshot.Identities = append(snapshot.Identities, cachedIdentity{ID: id.ID, Name: id.DisplayName})
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	return nil
}

// LoadCache reads the cache snapshot back into a known set. Entries with
// a wrong-sized encoding or without a matching identity tuple are
// dropped, matching the load-time checks on the database path.
func LoadCache(path string) (KnownSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var snapshot cacheSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}

	n := len(snapshot.Encodings)
	if len(snapshot.Identities) < n {
		n = len(snapshot.Identities)
	}

	set := make(KnownSet, 0, n)
	for i := 0; i < n; i++ {
		if len(snapshot.Encodings[i]) != config.EmbeddingDim {
			continue
		}
		set = append(set, Identity{
			ID:          snapshot.Identities[i].ID,
			DisplayName: snapshot.Identities[i].Name,
			Embedding:   snapshot.Encodings[i],
		})
	}

	return set, nil
}
