package engine

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// Tolerância absoluta de cotação aceita num fill parcial: o taker pode pedir
// até 0.01 acima da cotação registrada do lado tomado.
const oddsTolerance = 0.01

// PartialMatchRequest casa uma porção do lado aberto de uma ordem, criando um
// registro filho para a porção casada e encolhendo o pai proporcionalmente.
type PartialMatchRequest struct {
	MatchRequest

	// RentPayer do registro filho.
	RentPayer Identity
	// ChildSlot é o slot em branco, já alocado, que recebe a porção casada.
	ChildSlot string
}

// PartialTaker executa o split: valida como um Taker (com tolerância de
// cotação em vez de desigualdade estrita), popula o filho como posição
// totalmente casada e reequilibra o pai preservando a razão de preço
// original. Pai e filho são gravados juntos; se a transferência falhar,
// nenhum dos dois é escrito.
func (e *Engine) PartialTaker(ctx context.Context, rec *BetRecord, req *PartialMatchRequest) error {
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

	child, err := e.store.Get(ctx, req.ChildSlot)
	if err != nil {
		return err
	}
	if !child.Blank() {
		e.log.Warn("child slot is not empty", zap.String("childSlot", req.ChildSlot))
		return ErrRecordNotBlank
	}
	if !rec.SideOpen(req.Side) {
		e.log.Warn("matching a side that was already matched", zap.String("slot", req.Slot))
		return ErrSideTaken
	}
	if (rec.ToAggregate || rec.IsFreeBet) && !e.principals.IsOperator(req.Bettor) {
		e.log.Warn("unauthorized partial taker on aggregated or free-bet order", zap.String("slot", req.Slot))
		return ErrUnauthorizedMatch
	}

	// Cotação pedida vs. cotação corrente do pai para o mesmo lado.
	odds := oddsFor(req.Stake0, req.Stake1, req.Side)
	originalOdds := rec.Odds(req.Side)
	if odds-originalOdds > oddsTolerance {
		e.log.Warn("requested odds too high",
			zap.Float64("odds", odds),
			zap.Float64("originalOdds", originalOdds),
		)
		return ErrOddsTooHigh
	}

	// Filho: posição totalmente casada espelhando contra quem foi casado.
	child.Outcome = req.Outcome
	if req.Side == 0 {
		child.Wallet0 = req.Bettor
		child.Wallet1 = rec.Wallet1
	} else {
		child.Wallet1 = req.Bettor
		child.Wallet0 = rec.Wallet0
	}
	child.RentPayer = req.RentPayer
	child.PlacedAt = uint64(e.Now().Unix())
	child.Stake0 = req.Stake0
	child.Stake1 = req.Stake1
	child.Deposit = e.depositUnits

	// O filho herda a marca de agregação; o restante do pai deixa de estar
	// sujeito a agregação forçada depois de um casamento privado.
	child.ToAggregate = rec.ToAggregate
	rec.ToAggregate = false

	// Pai encolhe proporcionalmente: o lado em repouso perde a porção casada
	// e o lado aberto é recalculado para manter exata a razão de preço
	// pré-transação. Truncamento para baixo no produto final.
	var stake uint64
	if req.Side == 0 {
		if req.Stake1 > rec.Stake1 {
			return ErrStakeTooLarge
		}
		restingOdds := rec.Odds(1)
		rec.Stake1 -= req.Stake1
		rec.Stake0 = uint64(math.Floor(float64(rec.Stake1) * (restingOdds - 1.0)))
		stake = req.Stake0
	} else {
		if req.Stake0 > rec.Stake0 {
			return ErrStakeTooLarge
		}
		restingOdds := rec.Odds(0)
		rec.Stake0 -= req.Stake0
		rec.Stake1 = uint64(math.Floor(float64(rec.Stake0) * (restingOdds - 1.0)))
		stake = req.Stake1
	}

	if err := e.transferIn(ctx, req.CustodyProgram, req.Source, req.Destination, req.Bettor, stake); err != nil {
		return err
	}
	if err := e.store.PutPair(ctx, req.Slot, rec, req.ChildSlot, child); err != nil {
		return err
	}

	e.log.Info("order partially matched",
		zap.String("slot", req.Slot),
		zap.String("childSlot", req.ChildSlot),
		zap.Uint8("side", req.Side),
		zap.Uint64("stake", stake),
		zap.Uint64("restingStake0", rec.Stake0),
		zap.Uint64("restingStake1", rec.Stake1),
	)
	return nil
}

// oddsFor calcula a cotação decimal de um lado para as stakes dadas.
func oddsFor(stake0, stake1 uint64, side uint8) float64 {
	if side == 0 {
		return float64(stake0+stake1) / float64(stake0)
	}
	return float64(stake0+stake1) / float64(stake1)
}
