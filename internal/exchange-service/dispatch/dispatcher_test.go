package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/exchange-service/dispatch"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/exchange-service/wire"
)

type memStore struct {
	recs  map[string]*engine.BetRecord
	delay *engine.CancelDelay
}

func newMemStore() *memStore { return &memStore{recs: map[string]*engine.BetRecord{}} }

func (m *memStore) Get(_ context.Context, slot string) (*engine.BetRecord, error) {
	rec, ok := m.recs[slot]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, slot string, rec *engine.BetRecord) error {
	cp := *rec
	m.recs[slot] = &cp
	return nil
}

func (m *memStore) PutPair(ctx context.Context, slot string, rec *engine.BetRecord, childSlot string, child *engine.BetRecord) error {
	if err := m.Put(ctx, slot, rec); err != nil {
		return err
	}
	return m.Put(ctx, childSlot, child)
}

func (m *memStore) Delete(_ context.Context, slot string) error {
	delete(m.recs, slot)
	return nil
}

func (m *memStore) GetDelay(_ context.Context) (*engine.CancelDelay, error) { return m.delay, nil }

func (m *memStore) PutDelay(_ context.Context, d *engine.CancelDelay) error {
	m.delay = d
	return nil
}

type fakeCustody struct{}

func (fakeCustody) TransferIn(context.Context, engine.Identity, engine.Identity, engine.Identity, uint64) error {
	return nil
}
func (fakeCustody) TransferOut(context.Context, engine.Identity, engine.Identity, engine.Identity, uint64) error {
	return nil
}
func (fakeCustody) Paired(context.Context, engine.Identity, engine.Identity) (bool, error) {
	return true, nil
}
func (fakeCustody) CreditDeposit(context.Context, engine.Identity, uint64) error { return nil }

func ident(b byte) engine.Identity {
	var id engine.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	admin       = ident(0xA1)
	programID   = ident(0xA3)
	poolAccount = ident(0xA4)
	custodyProg = ident(0xA5)

	slotID  = ident(0x01)
	alice   = ident(0x11)
	bob     = ident(0x22)
	source  = ident(0x44)
	retAcct = ident(0x66)
)

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *memStore) {
	t.Helper()
	store := newMemStore()
	p := engine.Principals{
		Admin:          admin,
		Operator:       ident(0xA2),
		Program:        programID,
		PoolAccount:    poolAccount,
		CustodyProgram: custodyProg,
	}
	eng := engine.New(zap.NewNop(), store, fakeCustody{}, p, 1000)
	eng.Now = func() time.Time { return time.Unix(1_750_000_000, 0) }
	return dispatch.New(zap.NewNop(), store, eng), store
}

func outcome() engine.Outcome {
	return engine.Outcome{Sport: 3, League: 42, Event: 9001, Period: 1, Market: 7}
}

func metas(keys ...engine.Identity) []wire.AccountMeta {
	out := make([]wire.AccountMeta, len(keys))
	for i, k := range keys {
		out[i] = wire.AccountMeta{Key: k}
	}
	return out
}

func openData() []byte {
	return wire.EncodeOpenPayload(&wire.OpenPayload{Outcome: outcome(), Stake0: 100, Stake1: 100, Side: 0})
}

func matchData(side uint8) []byte {
	return wire.EncodeMatchPayload(&wire.MatchPayload{Outcome: outcome(), Stake0: 100, Stake1: 100, Side: side})
}

// halfMatched grava um registro com o lado 0 ocupado por alice.
func halfMatched(store *memStore) {
	store.recs[slotID.String()] = &engine.BetRecord{
		Outcome:   outcome(),
		Stake0:    100,
		Stake1:    100,
		Wallet0:   alice,
		RentPayer: alice,
		PlacedAt:  1_750_000_000,
	}
}

func TestLegacyRoutingByShape(t *testing.T) {
	t.Run("blank record routes to open", func(t *testing.T) {
		disp, store := newDispatcher(t)
		store.recs[slotID.String()] = &engine.BetRecord{}

		in := &wire.Instruction{
			Accounts: metas(slotID, custodyProg, source, poolAccount, alice, alice, alice),
			Data:     openData(),
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpOpen {
			t.Fatalf("op: want open, got %s", res.Op)
		}
		if res.Record.Wallet0 != alice {
			t.Fatal("open did not populate the maker side")
		}
	})

	t.Run("five resources route to full match", func(t *testing.T) {
		disp, store := newDispatcher(t)
		halfMatched(store)

		in := &wire.Instruction{
			Accounts: metas(slotID, custodyProg, source, poolAccount, bob),
			Data:     matchData(1),
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpMatch || res.Side != 1 {
			t.Fatalf("op/side: want match/1, got %s/%d", res.Op, res.Side)
		}
		if res.Record.Wallet1 != bob {
			t.Fatal("match did not fill the open side")
		}
	})

	t.Run("seven resources with match payload route to partial", func(t *testing.T) {
		disp, store := newDispatcher(t)
		halfMatched(store)
		childSlot := ident(0x02)
		store.recs[childSlot.String()] = &engine.BetRecord{}

		in := &wire.Instruction{
			Accounts: metas(slotID, custodyProg, source, poolAccount, bob, bob, childSlot),
			Data: wire.EncodeMatchPayload(&wire.MatchPayload{
				Outcome: outcome(), Stake0: 40, Stake1: 40, Side: 1,
			}),
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpPartialMatch {
			t.Fatalf("op: want partial_match, got %s", res.Op)
		}
		if res.ChildSlot != childSlot.String() || res.Child == nil {
			t.Fatal("partial result missing the child position")
		}
	})

	t.Run("cancel payload routes to cancel", func(t *testing.T) {
		disp, store := newDispatcher(t)
		halfMatched(store)

		in := &wire.Instruction{
			Accounts: []wire.AccountMeta{
				{Key: slotID}, {Key: custodyProg}, {Key: poolAccount}, {Key: retAcct},
				{Key: alice, Signer: true}, {Key: alice}, {Key: ident(0x0F)},
			},
			Data: wire.EncodeCancelPayload(&wire.CancelPayload{Outcome: outcome(), Side: 0}),
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpCancel || !res.Cancelled {
			t.Fatalf("op: want cancel, got %s", res.Op)
		}
		if _, ok := store.recs[slotID.String()]; ok {
			t.Fatal("cancelled record still stored")
		}
	})

	t.Run("two resources route to set-delay", func(t *testing.T) {
		disp, store := newDispatcher(t)

		in := &wire.Instruction{
			Accounts: []wire.AccountMeta{{Key: engine.Identity{}}, {Key: admin, Signer: true}},
			Data:     []byte{30},
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpSetDelay {
			t.Fatalf("op: want set_delay, got %s", res.Op)
		}
		if store.delay == nil || store.delay.Seconds != 30 {
			t.Fatalf("delay not stored: %+v", store.delay)
		}
	})

	t.Run("fully matched record is a grade no-op", func(t *testing.T) {
		disp, store := newDispatcher(t)
		halfMatched(store)
		store.recs[slotID.String()].Wallet1 = bob

		in := &wire.Instruction{
			Accounts: metas(slotID, custodyProg, source, poolAccount, bob, bob, bob, bob),
			Data:     matchData(1),
		}
		res, err := disp.Dispatch(context.Background(), in)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if res.Op != wire.OpGrade {
			t.Fatalf("op: want grade, got %s", res.Op)
		}
		if got := store.recs[slotID.String()]; got.Wallet1 != bob {
			t.Fatal("grade no-op mutated the record")
		}
	})

	t.Run("unrecognized shape rejected", func(t *testing.T) {
		disp, store := newDispatcher(t)
		halfMatched(store)

		in := &wire.Instruction{
			Accounts: metas(slotID, custodyProg, source, poolAccount),
			Data:     []byte{1, 2, 3},
		}
		if _, err := disp.Dispatch(context.Background(), in); !errors.Is(err, engine.ErrInvalidArgument) {
			t.Fatalf("want ErrInvalidArgument, got %v", err)
		}
	})
}

func TestTaggedRoutingOverridesShape(t *testing.T) {
	// A mesma forma de sete recursos com payload de cancel seria roteada por
	// forma como cancel; a etiqueta força refund, que exige o admin.
	disp, store := newDispatcher(t)
	halfMatched(store)

	accounts := []wire.AccountMeta{
		{Key: slotID}, {Key: custodyProg}, {Key: poolAccount}, {Key: retAcct},
		{Key: admin, Signer: true}, {Key: alice}, {Key: ident(0x0F)},
	}
	payload := wire.EncodeCancelPayload(&wire.CancelPayload{Outcome: outcome(), Side: 0})

	res, err := disp.Dispatch(context.Background(), &wire.Instruction{
		Accounts: accounts,
		Data:     wire.Tag(wire.OpRefund, payload),
	})
	if err != nil {
		t.Fatalf("tagged refund: %v", err)
	}
	if res.Op != wire.OpRefund {
		t.Fatalf("op: want refund, got %s", res.Op)
	}

	// A forma legada idêntica (admin no lugar do cancelador) é um cancel
	// comum e falha: o admin não é o dono do lado.
	halfMatched(store)
	if _, err := disp.Dispatch(context.Background(), &wire.Instruction{
		Accounts: accounts,
		Data:     payload,
	}); !errors.Is(err, engine.ErrUnauthorizedCancel) {
		t.Fatalf("legacy shape as refund: want ErrUnauthorizedCancel, got %v", err)
	}
}

func TestDispatchMissingSlot(t *testing.T) {
	disp, _ := newDispatcher(t)

	in := &wire.Instruction{
		Accounts: metas(slotID, custodyProg, source, poolAccount, bob),
		Data:     matchData(1),
	}
	if _, err := disp.Dispatch(context.Background(), in); !errors.Is(err, engine.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}
