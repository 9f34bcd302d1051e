package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goldwatch/goldwatch/pkg/models"
	"github.com/goldwatch/goldwatch/pkg/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsert_InsertAndOverwrite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := models.PriceRecord{Type: "gold_1", Name: "SJC bar", Karat: "24k", Purity: "999.9", BuyPrice: 11750000, SellPrice: models.Sell(12050000), UpdatedAt: "t1"}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rec.BuyPrice = 11800000
	rec.UpdatedAt = "t2"
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(all))
	}
	if all[0].BuyPrice != 11800000 || all[0].UpdatedAt != "t2" {
		t.Errorf("Overwrite not applied: %+v", all[0])
	}
}

func TestUpsert_NullableSellPrice(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, models.PriceRecord{Type: "gold_5", Name: "raw gold", Karat: "24k", Purity: "999.9", BuyPrice: 11190000, UpdatedAt: "t1"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec, err := s.FindByType(ctx, "gold_5")
	if err != nil {
		t.Fatalf("FindByType failed: %v", err)
	}
	if rec.SellPrice != nil {
		t.Errorf("Expected nil sell price, got %d", *rec.SellPrice)
	}
}

func TestFindAll_EmptyAndOrdered(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll on empty store failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("Expected empty set, got %d records", len(all))
	}

	for _, typ := range []string{"gold_3", "gold_1", "gold_2"} {
		if err := s.Upsert(ctx, models.PriceRecord{Type: typ, Name: typ, Karat: "24k", Purity: "999.9", BuyPrice: 1, UpdatedAt: "t1"}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	all, err = s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 3 || all[0].Type != "gold_1" || all[2].Type != "gold_3" {
		t.Errorf("Expected records in type order, got %+v", all)
	}
}

func TestFindByType_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.FindByType(context.Background(), "gold_9")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpsert_ConcurrentKeys(t *testing.T) {
	// Run with `go test -race ./...`
	s := openStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := models.PriceRecord{Type: "gold_" + string(rune('a'+n)), Name: "x", Karat: "24k", Purity: "999.9", BuyPrice: int64(n), UpdatedAt: "t1"}
			if err := s.Upsert(ctx, rec); err != nil {
				t.Errorf("Concurrent upsert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 8 {
		t.Errorf("Expected 8 records, got %d", len(all))
	}
}
