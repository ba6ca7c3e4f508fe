package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shopspring/decimal"
)

// TradeRecord is one execution as kept on the tape.
type TradeRecord struct {
	Seq       uint64          `json:"seq"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Qty       int64           `json:"qty"`
	MakerID   uint64          `json:"makerId"`
	TakerID   uint64          `json:"takerId"`
	TakerSide string          `json:"takerSide"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// TradeStore is the per-symbol trade tape, ordered by execution.
//
// It runs Pebble on an in-memory filesystem: the tape lives and dies with
// the process. retain caps the number of trades kept per symbol (0 keeps all).
type TradeStore struct {
	db     *pebble.DB
	retain int

	mu     sync.Mutex
	seq    uint64
	counts map[string]int
}

// NewTradeStore opens an empty in-memory tape.
func NewTradeStore(retain int) (*TradeStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open trade tape: %w", err)
	}
	return &TradeStore{
		db:     db,
		retain: retain,
		counts: make(map[string]int),
	}, nil
}

// Close closes the database
func (s *TradeStore) Close() error {
	return s.db.Close()
}

// Append assigns rec the next sequence number and stores it, evicting the
// oldest trade of the symbol when over retention.
func (s *TradeStore) Append(rec *TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec.Seq = s.seq

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(tradeKey(rec.Symbol, rec.Seq), data, nil); err != nil {
		return fmt.Errorf("failed to stage trade: %w", err)
	}

	n := s.counts[rec.Symbol] + 1
	if s.retain > 0 && n > s.retain {
		oldest, err := s.oldestKey(rec.Symbol)
		if err != nil {
			return err
		}
		if oldest != nil {
			if err := batch.Delete(oldest, nil); err != nil {
				return fmt.Errorf("failed to stage eviction: %w", err)
			}
			n--
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	s.counts[rec.Symbol] = n
	return nil
}

func (s *TradeStore) oldestKey(symbol string) ([]byte, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	if !iter.First() {
		return nil, nil
	}
	return append([]byte(nil), iter.Key()...), nil
}

// Recent returns up to limit trades for symbol, newest first.
func (s *TradeStore) Recent(symbol string, limit int) ([]*TradeRecord, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var trades []*TradeRecord
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var rec TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		trades = append(trades, &rec)
	}
	return trades, nil
}

// Count returns the number of trades currently kept for symbol.
func (s *TradeStore) Count(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[symbol]
}
