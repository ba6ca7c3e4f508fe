package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// FeederConfig controls synthetic order flow
type FeederConfig struct {
	Interval  time.Duration // How often to send a batch
	BatchSize int           // Commands per batch
	Symbols   []string      // Instruments to trade; empty means all
	MidPrice  float64       // Prices are drawn within ±5% of this
	Seed      int64         // 0 seeds from the clock
}

// DefaultFeederConfig returns reasonable defaults for a local demo
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		Interval:  100 * time.Millisecond,
		BatchSize: 10,
		MidPrice:  100,
	}
}

// CommandGenerator produces random command lines in the text command
// grammar, so generated flow takes exactly the path typed commands take.
type CommandGenerator struct {
	symbols []string
	mid     float64
	rng     *rand.Rand
	lastID  func() uint64
}

// NewCommandGenerator creates a generator. lastID reports the most recent
// order id so cancels and changes mostly target live orders.
func NewCommandGenerator(symbols []string, mid float64, seed int64, lastID func() uint64) *CommandGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if mid <= 0 {
		mid = 100
	}
	return &CommandGenerator{
		symbols: symbols,
		mid:     mid,
		rng:     rand.New(rand.NewSource(seed)),
		lastID:  lastID,
	}
}

func (g *CommandGenerator) side() string {
	if g.rng.Intn(2) == 1 {
		return "sell"
	}
	return "buy"
}

func (g *CommandGenerator) price() string {
	// ±5% around mid, in cents
	cents := int64(g.mid*100) + int64(g.rng.Intn(1001)-500)*int64(g.mid)/100
	if cents < 1 {
		cents = 1
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (g *CommandGenerator) qty() int {
	return g.rng.Intn(100) + 1
}

func (g *CommandGenerator) symbol() string {
	return g.symbols[g.rng.Intn(len(g.symbols))]
}

// recentID picks one of the last 100 ids.
func (g *CommandGenerator) recentID() uint64 {
	last := g.lastID()
	back := uint64(g.rng.Intn(100))
	if back >= last {
		return 1
	}
	return last - back
}

// Next returns one command: 70% limit, 10% market, 15% cancel, 5% change.
func (g *CommandGenerator) Next() string {
	r := g.rng.Intn(100)
	switch {
	case r < 70:
		return fmt.Sprintf("limit %s %s %d %s", g.side(), g.price(), g.qty(), g.symbol())
	case r < 80:
		return fmt.Sprintf("market %s %d %s", g.side(), g.qty(), g.symbol())
	case r < 95:
		return fmt.Sprintf("cancel order %d", g.recentID())
	default:
		return fmt.Sprintf("change order %d %s %d", g.recentID(), g.price(), g.qty())
	}
}

// Batch returns count commands
func (g *CommandGenerator) Batch(count int) []string {
	batch := make([]string, count)
	for i := range batch {
		batch[i] = g.Next()
	}
	return batch
}

// StartFeeder runs a background goroutine that executes generated commands
// against e until ctx is done or the returned cancel is called.
func StartFeeder(ctx context.Context, e *Engine, cfg FeederConfig, logger *zap.SugaredLogger) context.CancelFunc {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = e.Instruments()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFeederConfig().Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultFeederConfig().BatchSize
	}

	gen := NewCommandGenerator(cfg.Symbols, cfg.MidPrice, cfg.Seed, e.LastOrderID)
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		start := time.Now()
		lastReport := start
		sent := 0

		logger.Infow("feeder_started", "batch", cfg.BatchSize, "interval", cfg.Interval, "symbols", cfg.Symbols)

		for {
			select {
			case <-feedCtx.Done():
				elapsed := time.Since(start)
				logger.Infow("feeder_stopped",
					"commands", sent,
					"elapsed", elapsed.Round(time.Millisecond),
					"rate", float64(sent)/elapsed.Seconds())
				return

			case <-ticker.C:
				for _, cmd := range gen.Batch(cfg.BatchSize) {
					out, _ := e.Execute(cmd)
					logger.Debugw("feeder_command", "cmd", cmd, "out", out)
				}
				sent += cfg.BatchSize

				if time.Since(lastReport) >= 10*time.Second {
					lastReport = time.Now()
					elapsed := time.Since(start)
					logger.Infow("feeder_stats",
						"commands", sent,
						"rate", float64(sent)/elapsed.Seconds(),
						"last_order_id", e.LastOrderID())
				}
			}
		}
	}()

	return cancel
}
