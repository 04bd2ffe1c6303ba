package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/shared/poolauth"
)

// CancelRequest devolve a stake do lado ainda não casado ao seu dono (ou, em
// refund administrativo, a quem o admin indicar como destino pareado).
type CancelRequest struct {
	Slot    string
	Outcome Outcome
	// Side é o lado do cancelador; precisa ser o lado ocupado.
	Side uint8

	CustodyProgram Identity
	// Source é a conta de token da pool de onde sai a devolução.
	Source Identity
	// Destination recebe a devolução; precisa estar pareada com o
	// beneficiário correto (apostador, ou rent payer em free bets).
	Destination Identity
	// Canceller é quem assina o cancelamento.
	Canceller Identity
	// CancellerSigned indica se o cancelador provou controle da identidade.
	CancellerSigned bool
	// RentPayer recebe o depósito de armazenamento liberado.
	RentPayer Identity
	// IsRefund libera o escrow por decisão administrativa, ignorando o dono e
	// o atraso de agregação; exige o Admin.
	IsRefund bool
}

// Cancel libera o escrow do lado aberto e devolve o depósito de armazenamento
// ao rent payer. Ordens agregadas obedecem ao atraso mínimo configurado,
// exceto em refund pelo admin. O depósito só é devolvido depois da
// transferência de tokens confirmada.
func (e *Engine) Cancel(ctx context.Context, rec *BetRecord, req *CancelRequest) error {
	if rec.Outcome != req.Outcome {
		e.log.Warn("outcome ids of record and instruction don't match", zap.String("slot", req.Slot))
		return ErrOutcomeMismatch
	}
	if req.Side > 1 {
		return ErrInvalidInstructionData
	}
	// O lado indicado precisa ser o lado ocupado (o lado do cancelador).
	if rec.SideOpen(req.Side) {
		e.log.Warn("cancelling the wrong side", zap.String("slot", req.Slot))
		return ErrSideNotYours
	}
	if !req.CancellerSigned {
		e.log.Warn("canceller isn't signing", zap.String("slot", req.Slot))
		return ErrNotSigned
	}
	if req.IsRefund && !e.principals.IsAdmin(req.Canceller) {
		e.log.Warn("refund attempted by non-admin", zap.String("slot", req.Slot))
		return ErrUnauthorizedRefund
	}

	var bettor Identity
	if rec.Wallet0.IsBlank() {
		bettor = rec.Wallet1
	} else {
		bettor = rec.Wallet0
	}
	if !req.IsRefund && !req.Canceller.Equal(bettor) {
		e.log.Warn("not the correct bettor cancelling", zap.String("slot", req.Slot))
		return ErrUnauthorizedCancel
	}

	// Free bet devolve ao rent payer; caso contrário, à conta do apostador.
	beneficiary := bettor
	if rec.IsFreeBet {
		beneficiary = rec.RentPayer
	}
	paired, err := e.custody.Paired(ctx, beneficiary, req.Destination)
	if err != nil {
		return err
	}
	if !paired {
		e.log.Warn("wrong associated token account", zap.String("slot", req.Slot))
		return ErrWrongTokenAccount
	}

	if rec.ToAggregate {
		delay, err := e.store.GetDelay(ctx)
		if err != nil {
			return err
		}
		if delay == nil || !delay.IsReal {
			e.log.Warn("counterfeit cancel-delay config")
			return ErrCounterfeitConfig
		}
		if !delay.Program.Equal(e.principals.Program) {
			e.log.Warn("cancel-delay config from another program")
			return ErrIncorrectProgram
		}
		now := uint64(e.Now().Unix())
		if !req.IsRefund && now < rec.PlacedAt+uint64(delay.Seconds) {
			e.log.Info("too early to cancel",
				zap.String("slot", req.Slot),
				zap.Uint64("placedAt", rec.PlacedAt),
				zap.Uint8("delaySeconds", delay.Seconds),
			)
			return ErrTooEarly
		}
	}

	// Devolve a stake do lado que continua em branco.
	var stake uint64
	if rec.Wallet0.IsBlank() {
		stake = rec.Stake1
	} else if rec.Wallet1.IsBlank() {
		stake = rec.Stake0
	}

	derived := Identity(poolauth.Derive(e.principals.Program))
	if err := e.transferOut(ctx, req.CustodyProgram, req.Source, req.Destination, derived, stake); err != nil {
		return err
	}

	// Depósito de armazenamento volta ao rent payer e o registro é apagado.
	if rec.Deposit > 0 {
		if err := e.custody.CreditDeposit(ctx, rec.RentPayer, rec.Deposit); err != nil {
			return err
		}
	}
	if err := e.store.Delete(ctx, req.Slot); err != nil {
		return err
	}

	e.log.Info("order cancelled",
		zap.String("slot", req.Slot),
		zap.Uint64("stake", stake),
		zap.Bool("refund", req.IsRefund),
	)
	return nil
}

// SetDelayRequest atualiza a configuração de atraso de cancelamento.
type SetDelayRequest struct {
	Seconds     uint8
	Admin       Identity
	AdminSigned bool
}

// SetDelay grava a configuração de atraso; somente o admin, assinando.
func (e *Engine) SetDelay(ctx context.Context, req *SetDelayRequest) error {
	if !req.AdminSigned || !e.principals.IsAdmin(req.Admin) {
		e.log.Warn("unauthorized cancel-delay update")
		return ErrUnauthorizedAdmin
	}
	d := &CancelDelay{
		IsReal:  true,
		Seconds: req.Seconds,
		Program: e.principals.Program,
	}
	if err := e.store.PutDelay(ctx, d); err != nil {
		return err
	}
	e.log.Info("cancel delay updated", zap.Uint8("seconds", req.Seconds))
	return nil
}
