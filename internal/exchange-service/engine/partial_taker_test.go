package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// defaultPartial monta um PartialMatchRequest de bob sobre o lado dado.
func defaultPartial(slot, childSlot string, side uint8, stake0, stake1 uint64) *engine.PartialMatchRequest {
	return &engine.PartialMatchRequest{
		MatchRequest: engine.MatchRequest{
			Slot:           slot,
			Outcome:        testOutcome(),
			Stake0:         stake0,
			Stake1:         stake1,
			Side:           side,
			CustodyProgram: custodyProg,
			Source:         bobSource,
			Destination:    poolAccount,
			Bettor:         bob,
		},
		RentPayer: bob,
		ChildSlot: childSlot,
	}
}

func partialFixture(t *testing.T, open *engine.OpenRequest) (*engine.Engine, *memStore, *fakeCustody, *engine.BetRecord) {
	t.Helper()
	eng, store, cust := fixture(t)
	rec := openOrder(t, eng, store, open.Slot, open)
	store.allocate("child-1")
	return eng, store, cust, rec
}

func TestPartialTakerSplitsOrder(t *testing.T) {
	eng, store, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))

	req := defaultPartial("parent-1", "child-1", 1, 40, 40)
	if err := eng.PartialTaker(context.Background(), rec, req); err != nil {
		t.Fatalf("partial match: %v", err)
	}

	child, err := store.Get(context.Background(), "child-1")
	if err != nil {
		t.Fatalf("child not stored: %v", err)
	}
	if child.Wallet1 != bob || child.Wallet0 != alice {
		t.Fatalf("child wallets: want alice/bob, got %s/%s", child.Wallet0, child.Wallet1)
	}
	if child.Stake0 != 40 || child.Stake1 != 40 {
		t.Fatalf("child stakes: want 40/40, got %d/%d", child.Stake0, child.Stake1)
	}
	if child.SideOpen(0) || child.SideOpen(1) {
		t.Fatal("child should be a fully matched position")
	}
	if child.RentPayer != bob {
		t.Fatalf("child rent payer: want bob, got %s", child.RentPayer)
	}

	parent, _ := store.Get(context.Background(), "parent-1")
	if parent.Stake0 != 60 || parent.Stake1 != 60 {
		t.Fatalf("parent stakes: want 60/60, got %d/%d", parent.Stake0, parent.Stake1)
	}
	if !parent.SideOpen(1) {
		t.Fatal("parent open side should survive the split")
	}
}

func TestPartialTakerPreservesPriceWithTruncation(t *testing.T) {
	// Odds do lado 0 = 1.5; carve que deixa stake0=67 força truncamento:
	// 67 * 0.5 = 33.5 -> 33.
	eng, store, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 50))

	req := defaultPartial("parent-1", "child-1", 1, 33, 17)
	if err := eng.PartialTaker(context.Background(), rec, req); err != nil {
		t.Fatalf("partial match: %v", err)
	}

	parent, _ := store.Get(context.Background(), "parent-1")
	if parent.Stake0 != 67 || parent.Stake1 != 33 {
		t.Fatalf("parent stakes: want 67/33, got %d/%d", parent.Stake0, parent.Stake1)
	}
}

func TestPartialTakerOddsTolerance(t *testing.T) {
	// Registro 100/100: odds do lado 1 = 2.0. Pedido (90,100) tem odds
	// 190/100 = 1.9 (melhor para o maker, aceito); (115,100) tem odds 2.15
	// (acima da tolerância de 0.01, rejeitado).
	t.Run("below recorded odds accepted", func(t *testing.T) {
		eng, _, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))
		req := defaultPartial("parent-1", "child-1", 1, 90, 100)
		if err := eng.PartialTaker(context.Background(), rec, req); err != nil {
			t.Fatalf("want accept, got %v", err)
		}
	})
	t.Run("above tolerance rejected", func(t *testing.T) {
		eng, _, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))
		req := defaultPartial("parent-1", "child-1", 1, 115, 100)
		if err := eng.PartialTaker(context.Background(), rec, req); !errors.Is(err, engine.ErrOddsTooHigh) {
			t.Fatalf("want ErrOddsTooHigh, got %v", err)
		}
	})
}

func TestPartialTakerOddsInvarianceAcrossFills(t *testing.T) {
	// Pai 1_000_000/400_000: odds do lado aberto (1) = 3.5. Cinco fills
	// sucessivos de (251,100) forçam truncamento em cada reequilíbrio; a
	// cotação do lado aberto não pode derivar mais que uma fração mínima.
	eng, store, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 1_000_000, 400_000))

	const fills = 5
	for i := 1; i <= fills; i++ {
		childSlot := fmt.Sprintf("child-%d", i)
		store.allocate(childSlot)

		req := defaultPartial("parent-1", childSlot, 1, 251, 100)
		if err := eng.PartialTaker(context.Background(), rec, req); err != nil {
			t.Fatalf("fill %d: %v", i, err)
		}

		rec, _ = store.Get(context.Background(), "parent-1")
		if !rec.SideOpen(1) {
			t.Fatalf("fill %d: parent lost its open side", i)
		}
		odds := float64(rec.Stake0+rec.Stake1) / float64(rec.Stake1)
		if math.Abs(odds-3.5) > 0.001 {
			t.Fatalf("fill %d: open-side odds drifted to %v", i, odds)
		}
	}

	if want := uint64(1_000_000 - fills*251); rec.Stake0 != want {
		t.Fatalf("resting stake: want %d, got %d", want, rec.Stake0)
	}
}

func TestPartialTakerStakeTooLarge(t *testing.T) {
	eng, _, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))

	req := defaultPartial("parent-1", "child-1", 1, 120, 120)
	if err := eng.PartialTaker(context.Background(), rec, req); !errors.Is(err, engine.ErrStakeTooLarge) {
		t.Fatalf("want ErrStakeTooLarge, got %v", err)
	}
}

func TestPartialTakerChildMustBeBlank(t *testing.T) {
	eng, store, _, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))
	occupied, _ := store.Get(context.Background(), "child-1")
	occupied.Wallet0 = bob
	_ = store.Put(context.Background(), "child-1", occupied)

	req := defaultPartial("parent-1", "child-1", 1, 40, 40)
	if err := eng.PartialTaker(context.Background(), rec, req); !errors.Is(err, engine.ErrRecordNotBlank) {
		t.Fatalf("want ErrRecordNotBlank, got %v", err)
	}
}

func TestPartialTakerAggregationInheritance(t *testing.T) {
	open := defaultOpen("parent-1", 0, 100, 100)
	open.ToAggregate = true
	eng, store, _, rec := partialFixture(t, open)

	req := defaultPartial("parent-1", "child-1", 1, 40, 40)
	req.Bettor = operator
	if err := eng.PartialTaker(context.Background(), rec, req); err != nil {
		t.Fatalf("partial match: %v", err)
	}

	child, _ := store.Get(context.Background(), "child-1")
	parent, _ := store.Get(context.Background(), "parent-1")
	if !child.ToAggregate {
		t.Fatal("child should inherit the aggregation mark")
	}
	if parent.ToAggregate {
		t.Fatal("parent remainder should leave forced aggregation")
	}
}

func TestPartialTakerTransferFailureWritesNothing(t *testing.T) {
	eng, store, cust, rec := partialFixture(t, defaultOpen("parent-1", 0, 100, 100))
	cust.failTransfer = true

	req := defaultPartial("parent-1", "child-1", 1, 40, 40)
	if err := eng.PartialTaker(context.Background(), rec, req); err == nil {
		t.Fatal("expected transfer failure")
	}

	parent, _ := store.Get(context.Background(), "parent-1")
	if parent.Stake0 != 100 || parent.Stake1 != 100 {
		t.Fatalf("parent mutated despite failed transfer: %d/%d", parent.Stake0, parent.Stake1)
	}
	child, _ := store.Get(context.Background(), "child-1")
	if !child.Blank() {
		t.Fatal("child written despite failed transfer")
	}
}
