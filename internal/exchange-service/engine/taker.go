package engine

import (
	"context"

	"go.uber.org/zap"
)

// MatchRequest casa por inteiro o lado aberto de uma ordem existente.
type MatchRequest struct {
	Slot    string
	Outcome Outcome

	// Stake0/Stake1 são os valores exatos que o taker espera encontrar;
	// o lado tomado pode melhorar o preço do maker, nunca piorá-lo.
	Stake0 uint64
	Stake1 uint64
	Side   uint8

	CustodyProgram Identity
	Source         Identity
	Destination    Identity
	// Bettor é o taker; free bet não se aplica aqui, então o próprio taker é
	// a autoridade do débito.
	Bettor Identity
}

// Taker preenche o lado aberto do registro com a stake do taker, validando a
// consistência de cotação, e persiste só depois do escrow confirmado.
func (e *Engine) Taker(ctx context.Context, rec *BetRecord, req *MatchRequest) error {
	e.log.Debug("record being matched now", zap.String("slot", req.Slot))

	if !e.principals.IsPool(req.Destination) {
		e.log.Warn("incorrect pool", zap.String("slot", req.Slot))
		return ErrInvalidDestination
	}
	if rec.Outcome != req.Outcome {
		e.log.Warn("outcome ids of record and matcher don't match", zap.String("slot", req.Slot))
		return ErrOutcomeMismatch
	}
	if req.Side > 1 {
		return ErrInvalidInstructionData
	}
	if !rec.SideOpen(req.Side) {
		e.log.Warn("matching a side that was already matched", zap.String("slot", req.Slot))
		return ErrSideTaken
	}

	// Checagem de segurança de cotação: a stake oferecida no lado tomado pode
	// ser maior que a registrada (melhora o preço do maker); o lado oposto
	// precisa estar intacto.
	if req.Side == 0 {
		if req.Stake0 < rec.Stake0 {
			return ErrOddsTooHigh
		}
		if req.Stake1 != rec.Stake1 {
			return ErrStakeMismatch
		}
	} else {
		if req.Stake1 < rec.Stake1 {
			return ErrOddsTooHigh
		}
		if req.Stake0 != rec.Stake0 {
			return ErrStakeMismatch
		}
	}

	// Ordens agregadas ou bonificadas só podem ser casadas pelo operador.
	if (rec.ToAggregate || rec.IsFreeBet) && !e.principals.IsOperator(req.Bettor) {
		e.log.Warn("unauthorized taker on aggregated or free-bet order", zap.String("slot", req.Slot))
		return ErrUnauthorizedMatch
	}

	var stake uint64
	if req.Side == 0 {
		rec.Stake0 = req.Stake0
		rec.Wallet0 = req.Bettor
		stake = req.Stake0
	} else {
		rec.Stake1 = req.Stake1
		rec.Wallet1 = req.Bettor
		stake = req.Stake1
	}

	if err := e.transferIn(ctx, req.CustodyProgram, req.Source, req.Destination, req.Bettor, stake); err != nil {
		return err
	}
	if err := e.store.Put(ctx, req.Slot, rec); err != nil {
		return err
	}

	e.log.Info("order matched",
		zap.String("slot", req.Slot),
		zap.Uint8("side", req.Side),
		zap.Uint64("stake", stake),
	)
	return nil
}
