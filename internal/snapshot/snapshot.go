// Package snapshot provides the opaque on-disk encoding for an
// engine.EngineSnapshot, deliberately left unspecified at the core
// level. It follows a writer/loader split (encoding/gob to a file),
// extended to write to any io.Writer so callers can also target the
// outbox's pebble store.
package snapshot

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"precedence/internal/engine"
)

// envelope wraps an engine.EngineSnapshot with metadata useful for
// selecting the newest snapshot on disk; it is gob's concern, not the
// core's.
type envelope struct {
	Created time.Time
	Data    engine.EngineSnapshot
}

// Write gob-encodes snap to w.
func Write(w io.Writer, snap engine.EngineSnapshot) error {
	return gob.NewEncoder(w).Encode(&envelope{Created: time.Now(), Data: snap})
}

// Read gob-decodes a snapshot previously written by Write.
func Read(r io.Reader) (engine.EngineSnapshot, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return engine.EngineSnapshot{}, err
	}
	return env.Data, nil
}

// WriteFile writes snap to dir/snapshot_<unix-nano>.bin, a
// naming-by-sequence convention that sorts lexically in load order.
func WriteFile(dir string, snap engine.EngineSnapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.bin", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := Write(f, snap); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatestFile finds and decodes the newest snapshot_*.bin in dir. It
// returns (zero value, nil) if dir has no snapshots yet, so startup
// with no prior snapshot is a normal case rather than an error.
func LoadLatestFile(dir string) (engine.EngineSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.EngineSnapshot{}, nil
		}
		return engine.EngineSnapshot{}, err
	}

	var latestName string
	var latestSeq int64
	for _, e := range entries {
		var seq int64
		n, _ := fmt.Sscanf(e.Name(), "snapshot_%d.bin", &seq)
		if n == 1 && seq > latestSeq {
			latestSeq = seq
			latestName = e.Name()
		}
	}
	if latestName == "" {
		return engine.EngineSnapshot{}, nil
	}

	f, err := os.Open(filepath.Join(dir, latestName))
	if err != nil {
		return engine.EngineSnapshot{}, err
	}
	defer f.Close()
	return Read(f)
}
