package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// memStore guarda registros em memória, clonando na leitura e na escrita para
// simular a viagem pelo codec do banco.
type memStore struct {
	recs    map[string]*engine.BetRecord
	delay   *engine.CancelDelay
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]*engine.BetRecord{}}
}

var errStoreDown = errors.New("store down")

func (m *memStore) Get(_ context.Context, slot string) (*engine.BetRecord, error) {
	rec, ok := m.recs[slot]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, slot string, rec *engine.BetRecord) error {
	if m.failPut {
		return errStoreDown
	}
	cp := *rec
	m.recs[slot] = &cp
	return nil
}

func (m *memStore) PutPair(ctx context.Context, slot string, rec *engine.BetRecord, childSlot string, child *engine.BetRecord) error {
	if m.failPut {
		return errStoreDown
	}
	if err := m.Put(ctx, slot, rec); err != nil {
		return err
	}
	return m.Put(ctx, childSlot, child)
}

func (m *memStore) Delete(_ context.Context, slot string) error {
	if _, ok := m.recs[slot]; !ok {
		return engine.ErrRecordNotFound
	}
	delete(m.recs, slot)
	return nil
}

func (m *memStore) GetDelay(_ context.Context) (*engine.CancelDelay, error) {
	if m.delay == nil {
		return nil, nil
	}
	cp := *m.delay
	return &cp, nil
}

func (m *memStore) PutDelay(_ context.Context, d *engine.CancelDelay) error {
	cp := *d
	m.delay = &cp
	return nil
}

// allocate registra um slot em branco, como faz a camada HTTP antes do open.
func (m *memStore) allocate(slot string) {
	m.recs[slot] = &engine.BetRecord{}
}

// transferCall registra uma movimentação pedida à custódia fake.
type transferCall struct {
	kind      string // in | out | deposit
	source    engine.Identity
	dest      engine.Identity
	authority engine.Identity
	amount    uint64
}

// fakeCustody registra chamadas e permite simular falha de transferência e
// pareamento de contas de token.
type fakeCustody struct {
	calls        []transferCall
	failTransfer bool
	// pairs mapeia conta de token -> dono.
	pairs map[engine.Identity]engine.Identity
}

var errCustodyDown = errors.New("custody down")

func newFakeCustody() *fakeCustody {
	return &fakeCustody{pairs: map[engine.Identity]engine.Identity{}}
}

func (f *fakeCustody) TransferIn(_ context.Context, source, dest, authority engine.Identity, amount uint64) error {
	if f.failTransfer {
		return errCustodyDown
	}
	f.calls = append(f.calls, transferCall{kind: "in", source: source, dest: dest, authority: authority, amount: amount})
	return nil
}

func (f *fakeCustody) TransferOut(_ context.Context, source, dest, derived engine.Identity, amount uint64) error {
	if f.failTransfer {
		return errCustodyDown
	}
	f.calls = append(f.calls, transferCall{kind: "out", source: source, dest: dest, authority: derived, amount: amount})
	return nil
}

func (f *fakeCustody) Paired(_ context.Context, owner, tokenAccount engine.Identity) (bool, error) {
	return f.pairs[tokenAccount].Equal(owner), nil
}

func (f *fakeCustody) CreditDeposit(_ context.Context, to engine.Identity, amount uint64) error {
	f.calls = append(f.calls, transferCall{kind: "deposit", dest: to, amount: amount})
	return nil
}

// lastCall devolve a última movimentação registrada.
func (f *fakeCustody) lastCall(t *testing.T) transferCall {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no custody calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func ident(b byte) engine.Identity {
	var id engine.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	admin       = ident(0xA1)
	operator    = ident(0xA2)
	programID   = ident(0xA3)
	poolAccount = ident(0xA4)
	custodyProg = ident(0xA5)

	alice       = ident(0x11)
	bob         = ident(0x22)
	sponsor     = ident(0x33)
	aliceSource = ident(0x44)
	bobSource   = ident(0x55)
)

const testDeposit = 2_039_280

func testPrincipals() engine.Principals {
	return engine.Principals{
		Admin:          admin,
		Operator:       operator,
		Program:        programID,
		PoolAccount:    poolAccount,
		CustodyProgram: custodyProg,
	}
}

// fixture monta engine, store e custódia com relógio fixo.
func fixture(t *testing.T) (*engine.Engine, *memStore, *fakeCustody) {
	t.Helper()
	store := newMemStore()
	cust := newFakeCustody()
	eng := engine.New(zap.NewNop(), store, cust, testPrincipals(), testDeposit)
	eng.Now = func() time.Time { return time.Unix(1_750_000_000, 0) }
	return eng, store, cust
}

func testOutcome() engine.Outcome {
	return engine.Outcome{Sport: 3, League: 42, Event: 9001, Period: 1, Market: 7, Player: 0}
}

// openOrder abre uma ordem padrão no slot dado e devolve o registro gravado.
func openOrder(t *testing.T, eng *engine.Engine, store *memStore, slot string, req *engine.OpenRequest) *engine.BetRecord {
	t.Helper()
	store.allocate(slot)
	rec, err := store.Get(context.Background(), slot)
	if err != nil {
		t.Fatalf("get blank record: %v", err)
	}
	if err := eng.Maker(context.Background(), rec, req); err != nil {
		t.Fatalf("open order: %v", err)
	}
	saved, err := store.Get(context.Background(), slot)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	return saved
}

// defaultOpen monta um OpenRequest do lado dado, maker alice.
func defaultOpen(slot string, side uint8, stake0, stake1 uint64) *engine.OpenRequest {
	return &engine.OpenRequest{
		Slot:           slot,
		Outcome:        testOutcome(),
		Stake0:         stake0,
		Stake1:         stake1,
		Side:           side,
		CustodyProgram: custodyProg,
		Source:         aliceSource,
		Destination:    poolAccount,
		Authority:      alice,
		Bettor:         alice,
		RentPayer:      alice,
	}
}
