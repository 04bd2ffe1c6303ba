package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/exchange-service/wire"
)

// Postgres persiste os registros de aposta como blobs opacos endereçados por
// slot. O layout dos blobs é do codec de fio; o banco só enxerga chave-valor,
// mais uma trilha de auditoria por transição.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// AllocateSlot cria um slot em branco. Falha se o slot já existe.
func (p *Postgres) AllocateSlot(ctx context.Context, slot string, rentPayer engine.Identity) error {
	blank := wire.EncodeRecord(&engine.BetRecord{})
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_records (slot, data, rent_payer)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO NOTHING`,
		slot, blank, rentPayer.String(),
	)
	if err != nil {
		return fmt.Errorf("allocate slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("slot %s already allocated: %w", slot, engine.ErrAlreadyInitialized)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, slot string) (*engine.BetRecord, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM bet_records WHERE slot=$1`, slot).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slot %s: %w", slot, engine.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return wire.DecodeRecord(data)
}

func (p *Postgres) Put(ctx context.Context, slot string, rec *engine.BetRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := putTx(ctx, tx, slot, rec); err != nil {
		return err
	}
	if err := auditTx(ctx, tx, slot, "put"); err != nil {
		return err
	}
	return tx.Commit()
}

// PutPair grava pai e filho na mesma transação: o split parcial é tudo ou
// nada também no substrato.
func (p *Postgres) PutPair(ctx context.Context, slot string, rec *engine.BetRecord, childSlot string, child *engine.BetRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := putTx(ctx, tx, slot, rec); err != nil {
		return err
	}
	if err := putTx(ctx, tx, childSlot, child); err != nil {
		return err
	}
	if err := auditTx(ctx, tx, slot, "put_pair:"+childSlot); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Delete(ctx context.Context, slot string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM bet_records WHERE slot=$1`, slot)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("slot %s: %w", slot, engine.ErrRecordNotFound)
	}
	if err := auditTx(ctx, tx, slot, "delete"); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDelay devolve a configuração de atraso, ou nil se nunca foi gravada.
func (p *Postgres) GetDelay(ctx context.Context) (*engine.CancelDelay, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM delay_config WHERE id=1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delay config: %w", err)
	}
	return wire.DecodeDelay(data)
}

func (p *Postgres) PutDelay(ctx context.Context, d *engine.CancelDelay) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO delay_config (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()`,
		wire.EncodeDelay(d),
	)
	if err != nil {
		return fmt.Errorf("put delay config: %w", err)
	}
	return nil
}

func putTx(ctx context.Context, tx *sql.Tx, slot string, rec *engine.BetRecord) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bet_records SET data=$2, updated_at=NOW() WHERE slot=$1`,
		slot, wire.EncodeRecord(rec),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("slot %s: %w", slot, engine.ErrRecordNotFound)
	}
	return nil
}

func auditTx(ctx context.Context, tx *sql.Tx, slot, op string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO exchange_ledger (id, slot, operation, created_at)
		VALUES ($1, $2, $3, NOW())`,
		uuid.NewString(), slot, op,
	)
	return err
}
