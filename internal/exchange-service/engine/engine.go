package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecordStore é o substrato opaco de chave-valor onde vivem os registros de
// aposta e a configuração de atraso. Endereçamento por slot; sem ponteiros
// entre registros.
type RecordStore interface {
	Get(ctx context.Context, slot string) (*BetRecord, error)
	Put(ctx context.Context, slot string, rec *BetRecord) error
	// PutPair grava pai e filho atomicamente (split parcial: tudo ou nada).
	PutPair(ctx context.Context, slot string, rec *BetRecord, childSlot string, child *BetRecord) error
	Delete(ctx context.Context, slot string) error
	GetDelay(ctx context.Context) (*CancelDelay, error)
	PutDelay(ctx context.Context, d *CancelDelay) error
}

// Custody é o serviço externo de custódia de tokens: move valor entre contas
// sob checagem de autorização. O engine nunca persiste um registro sem a
// transferência correspondente ter sido confirmada.
type Custody interface {
	TransferIn(ctx context.Context, source, dest Identity, authority Identity, amount uint64) error
	TransferOut(ctx context.Context, source, dest Identity, derivedAuthority Identity, amount uint64) error
	Paired(ctx context.Context, owner, tokenAccount Identity) (bool, error)
	CreditDeposit(ctx context.Context, to Identity, amount uint64) error
}

// Engine executa as transições da máquina de estados de casamento e escrow.
// Toda operação valida, transfere e só então persiste.
type Engine struct {
	log        *zap.Logger
	store      RecordStore
	custody    Custody
	principals Principals

	// depositUnits é o depósito de armazenamento retido por registro novo.
	depositUnits uint64

	// Now é o relógio externo confiável, lido uma vez por invocação.
	// Substituível em teste.
	Now func() time.Time
}

func New(log *zap.Logger, store RecordStore, custody Custody, p Principals, depositUnits uint64) *Engine {
	return &Engine{
		log:          log,
		store:        store,
		custody:      custody,
		principals:   p,
		depositUnits: depositUnits,
		Now:          time.Now,
	}
}

// Principals expõe as identidades confiáveis configuradas.
func (e *Engine) Principals() Principals { return e.principals }

// transferIn valida o programa de custódia e credita a pool.
func (e *Engine) transferIn(ctx context.Context, custodyProgram, source, dest, authority Identity, amount uint64) error {
	if !custodyProgram.Equal(e.principals.CustodyProgram) {
		e.log.Warn("incorrect token program id", zap.String("got", custodyProgram.String()))
		return ErrUnauthorizedTransferProgram
	}
	return e.custody.TransferIn(ctx, source, dest, authority, amount)
}

// transferOut valida o programa de custódia e debita a pool assinando com a
// autoridade derivada do programa (somente este engine consegue produzi-la).
func (e *Engine) transferOut(ctx context.Context, custodyProgram, source, dest, derived Identity, amount uint64) error {
	if !custodyProgram.Equal(e.principals.CustodyProgram) {
		e.log.Warn("incorrect token program id", zap.String("got", custodyProgram.String()))
		return ErrUnauthorizedTransferProgram
	}
	return e.custody.TransferOut(ctx, source, dest, derived, amount)
}
