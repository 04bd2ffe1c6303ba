package matcher

import "testing"

const key = "3:42:9001:1:7:0"

func order(slot string, side uint8, stake0, stake1 uint64) *Order {
	return &Order{Slot: slot, OutcomeKey: key, Side: side, Stake0: stake0, Stake1: stake1}
}

func TestAddRestsWithoutCounterpart(t *testing.T) {
	b := NewBook()

	if m, ok := b.Add(order("a", 0, 100, 100)); ok {
		t.Fatalf("empty book produced a match: %+v", m)
	}
	if got := b.Resting(key); got != 1 {
		t.Fatalf("resting: want 1, got %d", got)
	}
}

func TestAddMatchesExactPots(t *testing.T) {
	b := NewBook()

	b.Add(order("a", 0, 100, 100))
	m, ok := b.Add(order("b", 1, 100, 100))
	if !ok {
		t.Fatal("complementary order did not match")
	}
	if !m.Exact {
		t.Fatal("equal pots should be an exact match")
	}
	if m.Small.Slot != "b" || m.Large.Slot != "a" {
		t.Fatalf("pair: got %s/%s", m.Small.Slot, m.Large.Slot)
	}
	if got := b.Resting(key); got != 0 {
		t.Fatalf("matched order left in the book: %d resting", got)
	}
}

func TestAddPicksSmallerPotForFullMatch(t *testing.T) {
	b := NewBook()

	// Mesma cotação (1:1), potes diferentes: a menor casa por inteiro e a
	// maior recebe o casamento parcial.
	b.Add(order("big", 0, 300, 300))
	m, ok := b.Add(order("small", 1, 100, 100))
	if !ok {
		t.Fatal("same-price opposite sides did not match")
	}
	if m.Exact {
		t.Fatal("unequal pots reported as exact")
	}
	if m.Small.Slot != "small" || m.Large.Slot != "big" {
		t.Fatalf("pair: got small=%s large=%s", m.Small.Slot, m.Large.Slot)
	}
}

func TestComplementaryRequiresOppositeSides(t *testing.T) {
	b := NewBook()

	b.Add(order("a", 0, 100, 100))
	if _, ok := b.Add(order("b", 0, 100, 100)); ok {
		t.Fatal("same maker side must not match")
	}
	if got := b.Resting(key); got != 2 {
		t.Fatalf("resting: want 2, got %d", got)
	}
}

func TestComplementaryRequiresExactPrice(t *testing.T) {
	cases := []struct {
		name           string
		stake0, stake1 uint64
		want           bool
	}{
		{"same ratio scaled", 50, 100, true},
		{"inverted ratio", 100, 50, false},
		{"slightly off", 99, 200, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBook()
			b.Add(order("rest", 0, 100, 200))
			_, ok := b.Add(order("in", 1, tc.stake0, tc.stake1))
			if ok != tc.want {
				t.Fatalf("match=%v, want %v", ok, tc.want)
			}
		})
	}
}

func TestRemoveDropsExactSlot(t *testing.T) {
	b := NewBook()

	b.Add(order("a", 0, 100, 100))
	b.Add(order("b", 0, 100, 200))
	b.Remove(key, "a")

	if got := b.Resting(key); got != 1 {
		t.Fatalf("resting: want 1, got %d", got)
	}
	// A remanescente continua casável.
	if _, ok := b.Add(order("c", 1, 50, 100)); !ok {
		t.Fatal("remaining order no longer matches")
	}

	// Remover slot desconhecido é um no-op.
	b.Remove(key, "ghost")
}

func TestRemoveSlotEvictsByIndex(t *testing.T) {
	b := NewBook()

	b.Add(order("a", 0, 100, 100))
	b.RemoveSlot("a")

	if got := b.Resting(key); got != 0 {
		t.Fatalf("resting: want 0, got %d", got)
	}
	// A ordem removida não pode mais ser casada.
	if _, ok := b.Add(order("c", 1, 100, 100)); ok {
		t.Fatal("evicted order still matched")
	}
	b.RemoveSlot("c")

	// Slot desconhecido é um no-op; slot já casado idem.
	b.RemoveSlot("ghost")
	b.Add(order("d", 0, 100, 100))
	if _, ok := b.Add(order("e", 1, 100, 100)); !ok {
		t.Fatal("pair did not match")
	}
	b.RemoveSlot("d")
	b.RemoveSlot("e")
}

func TestOutcomesDoNotCross(t *testing.T) {
	b := NewBook()

	b.Add(order("a", 0, 100, 100))
	other := order("b", 1, 100, 100)
	other.OutcomeKey = "9:1:1:0:0:0"
	if _, ok := b.Add(other); ok {
		t.Fatal("orders on different outcomes matched")
	}
}
