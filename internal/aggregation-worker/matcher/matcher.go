package matcher

import (
	"sync"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// Order é uma ordem agregável em descanso no livro do operador. Side é o lado
// já ocupado pelo maker; o lado aberto é o oposto.
type Order struct {
	Slot       string
	Outcome    engine.Outcome
	OutcomeKey string
	Side       uint8
	Stake0     uint64
	Stake1     uint64
}

// Pot é o valor total em jogo da ordem.
func (o *Order) Pot() uint64 { return o.Stake0 + o.Stake1 }

// Match é um par de ordens complementares que o operador pode casar com
// exposição líquida zero. Small é casada por inteiro; Large recebe um
// casamento parcial com o par de stakes de Small, salvo quando Exact.
type Match struct {
	Small *Order
	Large *Order
	// Exact indica potes iguais: as duas ordens são casadas por inteiro.
	Exact bool
}

// Book mantém, por desfecho, as ordens agregáveis ainda sem contraparte.
type Book struct {
	mu        sync.Mutex
	byOutcome map[string][]*Order
	// keyBySlot indexa a chave de desfecho por slot, para remoção a partir
	// de eventos que só carregam o slot.
	keyBySlot map[string]string
}

func NewBook() *Book {
	return &Book{
		byOutcome: make(map[string][]*Order),
		keyBySlot: make(map[string]string),
	}
}

// Add tenta casar a ordem com uma complementar em descanso. Havendo par, a
// complementar sai do livro e o Match é devolvido; sem par, a ordem descansa.
func (b *Book) Add(o *Order) (*Match, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.byOutcome[o.OutcomeKey] {
		if !complementary(o, r) {
			continue
		}
		b.removeLocked(o.OutcomeKey, r.Slot)
		return pair(o, r), true
	}

	b.byOutcome[o.OutcomeKey] = append(b.byOutcome[o.OutcomeKey], o)
	b.keyBySlot[o.Slot] = o.OutcomeKey
	return nil, false
}

// Remove tira uma ordem do livro (cancelada ou casada fora do worker).
func (b *Book) Remove(outcomeKey, slot string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(outcomeKey, slot)
}

// RemoveSlot remove uma ordem conhecendo somente o slot.
func (b *Book) RemoveSlot(slot string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key, ok := b.keyBySlot[slot]; ok {
		b.removeLocked(key, slot)
	}
}

func (b *Book) removeLocked(outcomeKey, slot string) {
	resting := b.byOutcome[outcomeKey]
	for i, r := range resting {
		if r.Slot == slot {
			b.byOutcome[outcomeKey] = append(resting[:i], resting[i+1:]...)
			if len(b.byOutcome[outcomeKey]) == 0 {
				delete(b.byOutcome, outcomeKey)
			}
			break
		}
	}
	delete(b.keyBySlot, slot)
}

// Resting devolve quantas ordens descansam para um desfecho.
func (b *Book) Resting(outcomeKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byOutcome[outcomeKey])
}

// complementary exige lados de maker opostos e a mesma cotação exata
// (comparada por multiplicação cruzada, sem ponto flutuante).
func complementary(a, r *Order) bool {
	if a.Side == r.Side {
		return false
	}
	return a.Stake0*r.Stake1 == a.Stake1*r.Stake0
}

func pair(a, r *Order) *Match {
	if a.Pot() == r.Pot() {
		return &Match{Small: a, Large: r, Exact: true}
	}
	if a.Pot() < r.Pot() {
		return &Match{Small: a, Large: r}
	}
	return &Match{Small: r, Large: a}
}
