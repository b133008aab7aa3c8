package marketdata

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Static is an in-memory feed, set by hand. Used by the paper venue and
// in tests.
type Static struct {
	mu     sync.RWMutex
	last   map[string]decimal.Decimal
	volume map[string][]decimal.Decimal
}

func NewStatic() *Static {
	return &Static{
		last:   make(map[string]decimal.Decimal),
		volume: make(map[string][]decimal.Decimal),
	}
}

func (f *Static) SetLastPrice(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[symbol] = price
}

func (f *Static) SetVolumeProfile(symbol string, profile []decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume[symbol] = append([]decimal.Decimal(nil), profile...)
}

func (f *Static) LastPrice(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.last[symbol]
	return p, ok && p.IsPositive()
}

func (f *Static) VolumeProfile(symbol string) []decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]decimal.Decimal(nil), f.volume[symbol]...)
}
