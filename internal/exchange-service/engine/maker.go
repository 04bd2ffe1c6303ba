package engine

import (
	"context"

	"go.uber.org/zap"
)

// OpenRequest abre uma ordem nova em um slot em branco, colocando a stake do
// lado escolhido em escrow na pool.
type OpenRequest struct {
	Slot    string
	Outcome Outcome

	Stake0 uint64
	Stake1 uint64
	// Side é o lado assumido pelo maker (0 ou 1); o oposto fica aberto.
	Side        uint8
	ToAggregate bool

	// CustodyProgram é o programa de custódia referenciado na instrução;
	// precisa ser o oficial.
	CustodyProgram Identity
	// Source é a conta de token de onde sai a stake.
	Source Identity
	// Destination precisa ser a conta receptora da pool.
	Destination Identity
	// Authority autoriza o débito da Source; difere do Bettor em free bets.
	Authority Identity
	// Bettor é o apostador nominal dono do lado escolhido.
	Bettor Identity
	// RentPayer recupera o depósito do registro no cancelamento.
	RentPayer Identity
}

// Maker grava uma ordem nova: valida destino e blancura do slot, popula o
// registro e só persiste depois do escrow confirmado (atômico no sucesso).
func (e *Engine) Maker(ctx context.Context, rec *BetRecord, req *OpenRequest) error {
	if !e.principals.IsPool(req.Destination) {
		e.log.Warn("incorrect pool", zap.String("slot", req.Slot))
		return ErrInvalidDestination
	}
	if !rec.Blank() {
		e.log.Warn("open into non-empty record", zap.String("slot", req.Slot))
		return ErrRecordNotBlank
	}
	if req.Side > 1 {
		return ErrInvalidInstructionData
	}

	rec.Outcome = req.Outcome
	rec.Stake0 = req.Stake0
	rec.Stake1 = req.Stake1

	var stake uint64
	if req.Side == 0 {
		rec.Wallet0 = req.Bettor
		stake = rec.Stake0
	} else {
		rec.Wallet1 = req.Bettor
		stake = rec.Stake1
	}
	rec.RentPayer = req.RentPayer
	rec.IsFreeBet = !req.Authority.Equal(req.Bettor)
	rec.ToAggregate = req.ToAggregate
	rec.PlacedAt = uint64(e.Now().Unix())
	rec.Deposit = e.depositUnits

	if err := e.transferIn(ctx, req.CustodyProgram, req.Source, req.Destination, req.Authority, stake); err != nil {
		return err
	}
	if err := e.store.Put(ctx, req.Slot, rec); err != nil {
		return err
	}

	e.log.Info("order opened",
		zap.String("slot", req.Slot),
		zap.Uint8("side", req.Side),
		zap.Uint64("stake", stake),
		zap.Bool("freeBet", rec.IsFreeBet),
		zap.Bool("toAggregate", rec.ToAggregate),
	)
	return nil
}
