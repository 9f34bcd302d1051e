package feeder

import (
	"context"
	"sync"

	"github.com/goldwatch/goldwatch/pkg/models"
)

const (
	priceFloor = 100000 // VND, prices never walk below this
	minStep    = 10000
	stepRange  = 90000
)

// Simulator is a stand-in price source for local runs: a random walk over
// a fixed set of instruments. Each tick every instrument has a 70% chance
// of moving by 10,000-100,000 VND in either direction.
type Simulator struct {
	rand    Rand
	clock   Clock
	mu      sync.Mutex
	current models.RecordSet
}

func NewSimulator(rnd Rand, clock Clock) *Simulator {
	return &Simulator{
		rand:    rnd,
		clock:   clock,
		current: baseRecords(),
	}
}

func (s *Simulator) Fetch(ctx context.Context) (models.RecordSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Format("02/01/2006 15:04:05")
	next := make(models.RecordSet, len(s.current))
	for i, rec := range s.current {
		if s.rand.Float64() < 0.7 {
			rec.BuyPrice = walk(rec.BuyPrice, s.step())
			if rec.SellPrice != nil {
				rec.SellPrice = models.Sell(walk(*rec.SellPrice, s.step()))
			}
			rec.UpdatedAt = now
		}
		next[i] = rec
	}
	s.current = next

	// Hand out a copy so callers cannot mutate simulator state.
	out := make(models.RecordSet, len(next))
	copy(out, next)
	return out, nil
}

func (s *Simulator) step() int64 {
	delta := int64(s.rand.Intn(stepRange)) + minStep
	if s.rand.Float64() > 0.5 {
		return delta
	}
	return -delta
}

func walk(price, delta int64) int64 {
	next := price + delta
	if next < priceFloor {
		return priceFloor
	}
	return next
}

func baseRecords() models.RecordSet {
	return models.RecordSet{
		{Type: "gold_1", Name: "VÀNG MIẾNG VRTL (Vàng Rồng Thăng Long)", Karat: "24k", Purity: "999.9", BuyPrice: 11750000, SellPrice: models.Sell(12050000)},
		{Type: "gold_2", Name: "QUÀ MỪNG BẢN VỊ VÀNG (Quà Mừng Bản Vị Vàng)", Karat: "24k", Purity: "999.9", BuyPrice: 11750000, SellPrice: models.Sell(12050000)},
		{Type: "gold_3", Name: "TRANG SỨC BẰNG VÀNG RỒNG THĂNG LONG 99.9 (Vàng BTMC)", Karat: "24k", Purity: "99.9", BuyPrice: 11640000, SellPrice: models.Sell(12000000)},
		{Type: "gold_4", Name: "NHẪN TRÒN TRƠN (Vàng Rồng Thăng Long)", Karat: "24k", Purity: "999.9", BuyPrice: 11750000, SellPrice: models.Sell(12050000)},
		{Type: "gold_5", Name: "VÀNG NGUYÊN LIỆU (Vàng thị trường)", Karat: "24k", Purity: "999.9", BuyPrice: 11190000},
		{Type: "gold_6", Name: "TRANG SỨC BẰNG VÀNG RỒNG THĂNG LONG 999.9 (Vàng BTMC)", Karat: "24k", Purity: "999.9", BuyPrice: 11650000, SellPrice: models.Sell(12010000)},
		{Type: "gold_7", Name: "VÀNG MIẾNG SJC (Vàng SJC)", Karat: "24k", Purity: "999.9", BuyPrice: 12020000, SellPrice: models.Sell(12220000)},
	}
}
