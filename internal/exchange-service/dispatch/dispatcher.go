package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/exchange-service/wire"
)

// Dispatcher roteia uma instrução para exatamente um handler do engine,
// inspecionando o estado do registro alvo e a forma da instrução.
//
// Instruções novas carregam a operação etiquetada no payload; as legadas são
// roteadas pela forma (contagem de recursos + comprimento do payload),
// preservando o contrato de fio original:
//
//	2 recursos                      -> atualização da config de atraso (admin)
//	registro em branco              -> open (maker)
//	um lado em branco, payload 37   -> match com 5 recursos, parcial com 7
//	um lado em branco, payload 21   -> cancel (7 ou 8 recursos)
//	um lado em branco, 8 recursos   -> grade/push reservado (no-op)
//	nenhum lado em branco           -> grade/push reservado (no-op)
type Dispatcher struct {
	log   *zap.Logger
	store engine.RecordStore
	eng   *engine.Engine
}

func New(log *zap.Logger, store engine.RecordStore, eng *engine.Engine) *Dispatcher {
	return &Dispatcher{log: log, store: store, eng: eng}
}

// Result descreve a transição executada, para publicação de eventos e cache.
type Result struct {
	Op   wire.OpKind
	Slot string
	// Record é o estado pós-transição do registro alvo (pré-remoção, no caso
	// de cancelamento).
	Record    *engine.BetRecord
	ChildSlot string
	Child     *engine.BetRecord
	Cancelled bool
	// Side é o lado indicado no payload da operação.
	Side uint8
}

// Dispatch decodifica, roteia e executa a instrução.
func (d *Dispatcher) Dispatch(ctx context.Context, in *wire.Instruction) (*Result, error) {
	if op, payload, ok := in.Tagged(); ok {
		return d.route(ctx, op, payload, in)
	}

	// Forma legada.
	if len(in.Accounts) == 2 {
		return d.route(ctx, wire.OpSetDelay, in.Data, in)
	}
	if len(in.Accounts) == 0 {
		return nil, fmt.Errorf("instruction without resources: %w", engine.ErrInvalidArgument)
	}

	rec, err := d.store.Get(ctx, in.Slot())
	if err != nil {
		return nil, err
	}
	w0Blank := rec.Wallet0.IsBlank()
	w1Blank := rec.Wallet1.IsBlank()

	switch {
	case w0Blank && w1Blank:
		return d.route(ctx, wire.OpOpen, in.Data, in)
	case w0Blank || w1Blank:
		if len(in.Data) == wire.MatchPayloadLen {
			switch len(in.Accounts) {
			case 5:
				return d.route(ctx, wire.OpMatch, in.Data, in)
			case 7:
				return d.route(ctx, wire.OpPartialMatch, in.Data, in)
			}
			return nil, fmt.Errorf("match-shaped payload with %d resources: %w", len(in.Accounts), engine.ErrInvalidArgument)
		}
		if len(in.Data) == wire.CancelPayloadLen && (len(in.Accounts) == 7 || len(in.Accounts) == 8) {
			return d.route(ctx, wire.OpCancel, in.Data, in)
		}
		if len(in.Accounts) == 8 {
			// Forma reservada de grade/push: no-op hoje.
			return &Result{Op: wire.OpGrade, Slot: in.Slot(), Record: rec}, nil
		}
		return nil, fmt.Errorf("unrecognized instruction shape: %w", engine.ErrInvalidArgument)
	default:
		// Ambos os lados preenchidos: grade/push reservado, no-op.
		return &Result{Op: wire.OpGrade, Slot: in.Slot(), Record: rec}, nil
	}
}

func (d *Dispatcher) route(ctx context.Context, op wire.OpKind, payload []byte, in *wire.Instruction) (*Result, error) {
	switch op {
	case wire.OpOpen:
		return d.open(ctx, payload, in)
	case wire.OpMatch:
		return d.match(ctx, payload, in)
	case wire.OpPartialMatch:
		return d.partialMatch(ctx, payload, in)
	case wire.OpCancel:
		return d.cancel(ctx, payload, in, false)
	case wire.OpRefund:
		return d.cancel(ctx, payload, in, true)
	case wire.OpSetDelay:
		return d.setDelay(ctx, payload, in)
	case wire.OpGrade:
		rec, err := d.store.Get(ctx, in.Slot())
		if err != nil {
			return nil, err
		}
		return &Result{Op: wire.OpGrade, Slot: in.Slot(), Record: rec}, nil
	}
	return nil, fmt.Errorf("unknown op kind %d: %w", op, engine.ErrInvalidInstructionData)
}

func (d *Dispatcher) open(ctx context.Context, payload []byte, in *wire.Instruction) (*Result, error) {
	if len(in.Accounts) < 7 {
		return nil, fmt.Errorf("open needs 7 resources, got %d: %w", len(in.Accounts), engine.ErrInvalidArgument)
	}
	p, err := wire.DecodeOpenPayload(payload)
	if err != nil {
		return nil, err
	}
	rec, err := d.store.Get(ctx, in.Slot())
	if err != nil {
		return nil, err
	}
	req := &engine.OpenRequest{
		Slot:           in.Slot(),
		Outcome:        p.Outcome,
		Stake0:         p.Stake0,
		Stake1:         p.Stake1,
		Side:           p.Side,
		ToAggregate:    p.ToAggregate,
		CustodyProgram: in.Accounts[1].Key,
		Source:         in.Accounts[2].Key,
		Destination:    in.Accounts[3].Key,
		Authority:      in.Accounts[4].Key,
		Bettor:         in.Accounts[5].Key,
		RentPayer:      in.Accounts[6].Key,
	}
	if err := d.eng.Maker(ctx, rec, req); err != nil {
		return nil, err
	}
	return &Result{Op: wire.OpOpen, Slot: req.Slot, Record: rec, Side: p.Side}, nil
}

func (d *Dispatcher) match(ctx context.Context, payload []byte, in *wire.Instruction) (*Result, error) {
	if len(in.Accounts) < 5 {
		return nil, fmt.Errorf("match needs 5 resources, got %d: %w", len(in.Accounts), engine.ErrInvalidArgument)
	}
	p, err := wire.DecodeMatchPayload(payload)
	if err != nil {
		return nil, err
	}
	rec, err := d.store.Get(ctx, in.Slot())
	if err != nil {
		return nil, err
	}
	req := &engine.MatchRequest{
		Slot:           in.Slot(),
		Outcome:        p.Outcome,
		Stake0:         p.Stake0,
		Stake1:         p.Stake1,
		Side:           p.Side,
		CustodyProgram: in.Accounts[1].Key,
		Source:         in.Accounts[2].Key,
		Destination:    in.Accounts[3].Key,
		Bettor:         in.Accounts[4].Key,
	}
	if err := d.eng.Taker(ctx, rec, req); err != nil {
		return nil, err
	}
	return &Result{Op: wire.OpMatch, Slot: req.Slot, Record: rec, Side: p.Side}, nil
}

func (d *Dispatcher) partialMatch(ctx context.Context, payload []byte, in *wire.Instruction) (*Result, error) {
	if len(in.Accounts) < 7 {
		return nil, fmt.Errorf("partial match needs 7 resources, got %d: %w", len(in.Accounts), engine.ErrInvalidArgument)
	}
	p, err := wire.DecodeMatchPayload(payload)
	if err != nil {
		return nil, err
	}
	rec, err := d.store.Get(ctx, in.Slot())
	if err != nil {
		return nil, err
	}
	req := &engine.PartialMatchRequest{
		MatchRequest: engine.MatchRequest{
			Slot:           in.Slot(),
			Outcome:        p.Outcome,
			Stake0:         p.Stake0,
			Stake1:         p.Stake1,
			Side:           p.Side,
			CustodyProgram: in.Accounts[1].Key,
			Source:         in.Accounts[2].Key,
			Destination:    in.Accounts[3].Key,
			Bettor:         in.Accounts[4].Key,
		},
		RentPayer: in.Accounts[5].Key,
		ChildSlot: in.Accounts[6].Key.String(),
	}
	if err := d.eng.PartialTaker(ctx, rec, req); err != nil {
		return nil, err
	}
	child, err := d.store.Get(ctx, req.ChildSlot)
	if err != nil {
		return nil, err
	}
	return &Result{
		Op:        wire.OpPartialMatch,
		Slot:      req.Slot,
		Record:    rec,
		ChildSlot: req.ChildSlot,
		Child:     child,
		Side:      p.Side,
	}, nil
}

func (d *Dispatcher) cancel(ctx context.Context, payload []byte, in *wire.Instruction, isRefund bool) (*Result, error) {
	if len(in.Accounts) < 7 {
		return nil, fmt.Errorf("cancel needs 7 resources, got %d: %w", len(in.Accounts), engine.ErrInvalidArgument)
	}
	p, err := wire.DecodeCancelPayload(payload)
	if err != nil {
		return nil, err
	}
	rec, err := d.store.Get(ctx, in.Slot())
	if err != nil {
		return nil, err
	}
	req := &engine.CancelRequest{
		Slot:            in.Slot(),
		Outcome:         p.Outcome,
		Side:            p.Side,
		CustodyProgram:  in.Accounts[1].Key,
		Source:          in.Accounts[2].Key,
		Destination:     in.Accounts[3].Key,
		Canceller:       in.Accounts[4].Key,
		CancellerSigned: in.Accounts[4].Signer,
		RentPayer:       in.Accounts[5].Key,
		IsRefund:        isRefund,
	}
	op := wire.OpCancel
	if isRefund {
		op = wire.OpRefund
	}
	if err := d.eng.Cancel(ctx, rec, req); err != nil {
		return nil, err
	}
	return &Result{Op: op, Slot: req.Slot, Record: rec, Cancelled: true, Side: p.Side}, nil
}

func (d *Dispatcher) setDelay(ctx context.Context, payload []byte, in *wire.Instruction) (*Result, error) {
	if len(in.Accounts) < 2 {
		return nil, fmt.Errorf("set-delay needs 2 resources, got %d: %w", len(in.Accounts), engine.ErrInvalidArgument)
	}
	seconds, err := wire.DecodeSetDelayPayload(payload)
	if err != nil {
		return nil, err
	}
	req := &engine.SetDelayRequest{
		Seconds:     seconds,
		Admin:       in.Accounts[1].Key,
		AdminSigned: in.Accounts[1].Signer,
	}
	if err := d.eng.SetDelay(ctx, req); err != nil {
		return nil, err
	}
	return &Result{Op: wire.OpSetDelay, Slot: in.Slot()}, nil
}
