package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// State is the delivery state of one ledger entry.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is the delivery-state record persisted per trade.
type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+8+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("outbox: record too short")
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// Ledger is a pebble-backed durability log for outbound trade
// messages: every trade message is recorded NEW before it is handed to
// the publisher (market-data messages are not ledgered), so a crash between "matched" and "published"
// is recoverable by the retry sweep instead of silently dropping the
// message.
type Ledger struct {
	db *pebble.DB
}

// OpenLedger opens (creating if necessary) a pebble store at dir.
func OpenLedger(dir string) (*Ledger, error) {
	db, err := pebble.Open(dir, &pebble.Options{DisableWAL: false})
	if err != nil {
		return nil, fmt.Errorf("outbox: open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying pebble database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// PutNew inserts a NEW entry for key carrying payload. key must be
// globally unique across every symbol, not just within one book, see
// KeyFor.
func (l *Ledger) PutNew(key string, payload []byte) error {
	return l.db.Set(keyFor(key), encodeRecord(Record{State: StateNew, Payload: payload}), pebble.Sync)
}

// UpdateState rewrites the state/retries/lastAttempt of key's entry,
// preserving its payload.
func (l *Ledger) UpdateState(key string, state State, retries uint32, now int64) error {
	rec, err := l.Get(key)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = now
	return l.db.Set(keyFor(key), encodeRecord(rec), pebble.Sync)
}

// Get returns the current record for key.
func (l *Ledger) Get(key string) (Record, error) {
	val, closer, err := l.db.Get(keyFor(key))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// Delete removes key's entry, used to clean up ACKED entries.
func (l *Ledger) Delete(key string) error {
	return l.db.Delete(keyFor(key), pebble.Sync)
}

// ScanByState iterates every entry in state, invoking fn with the
// entry's key and record. Used by the retry sweep.
func (l *Ledger) ScanByState(state State, fn func(key string, rec Record) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("msg/"),
		UpperBound: []byte("msg/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		key := string(bytes.TrimPrefix(iter.Key(), []byte("msg/")))
		if err := fn(key, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// KeyFor builds a ledger key that is unique across every symbol's
// trade sequence, not just within one book: trade ids are assigned
// per symbol (book.go's tradeSeq), so AAPL's first trade and MSFT's
// first trade share the same id and must not share a ledger key.
func KeyFor(symbol string, tradeID uint64) string {
	return fmt.Sprintf("%s:%020d", symbol, tradeID)
}

func keyFor(key string) []byte {
	return []byte("msg/" + key)
}

// now is overridable in tests via package variable, avoiding a direct
// time.Now() call sprinkled through the publisher.
var now = func() int64 { return time.Now().UnixNano() }
