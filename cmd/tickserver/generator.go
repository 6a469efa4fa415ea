package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-chartv1/internal/model"
)

// Starting prices for the built-in instruments.
var startPrices = map[string]float64{
	"EURUSD": 1.1000,
	"GBPUSD": 1.2700,
	"USDJPY": 148.00,
	"AUDUSD": 0.6600,
	"USDCAD": 1.3500,
	"XAUUSD": 2050.00,
	"XAGUSD": 23.00,
	"NIFTY":  21500.00,
}

// walker is a per-symbol random walk rounded to the instrument precision.
type walker struct {
	inst  model.Instrument
	price decimal.Decimal
	step  float64 // max relative move per tick
	rng   *rand.Rand
}

func newWalkers(symbols []string, seed int64) ([]*walker, error) {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*walker, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		inst, err := model.LookupInstrument(s)
		if err != nil {
			return nil, err
		}
		start, ok := startPrices[s]
		if !ok {
			return nil, fmt.Errorf("no start price for %s", s)
		}
		out = append(out, &walker{
			inst:  inst,
			price: decimal.NewFromFloat(start).Round(int32(inst.Digits())),
			step:  0.0002,
			rng:   rng,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols")
	}
	return out, nil
}

// next moves the price by up to step and returns the tick.
func (w *walker) next(now time.Time) model.Tick {
	pct := decimal.NewFromFloat((w.rng.Float64()*2 - 1) * w.step)
	p := w.price.Add(w.price.Mul(pct)).Round(int32(w.inst.Digits()))
	if min := decimal.NewFromFloat(w.inst.TickSize); p.LessThan(min) {
		p = min
	}
	w.price = p
	f, _ := p.Float64()
	return model.Tick{
		Symbol: w.inst.Symbol,
		Price:  f,
		Volume: float64(w.rng.Intn(10) + 1),
		Time:   now.UTC(),
	}
}

func runGenerator(ctx context.Context, h *hub, walkers []*walker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, w := range walkers {
				b, err := json.Marshal(w.next(now))
				if err != nil {
					continue
				}
				h.broadcast(b)
			}
		}
	}
}
