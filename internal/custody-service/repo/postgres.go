package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Postgres implementa as operações de custódia em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrWrongAuthority    = errors.New("wrong authority")
	ErrAlreadyExists     = errors.New("account already exists")
)

// CreateAccount registra uma conta de token com saldo zero
func (p *Postgres) CreateAccount(ctx context.Context, id, owner string) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO token_accounts(id, owner, balance) VALUES($1,$2,0) ON CONFLICT (id) DO NOTHING`,
		id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetAccount retorna id, dono e saldo de uma conta de token
func (p *Postgres) GetAccount(ctx context.Context, id string) (owner string, balance uint64, err error) {
	err = p.db.QueryRowContext(ctx, `SELECT owner, balance FROM token_accounts WHERE id=$1`, id).
		Scan(&owner, &balance)
	if err == sql.ErrNoRows {
		return "", 0, ErrNotFound
	}
	return owner, balance, err
}

// Deposit credita saldo diretamente numa conta de token (funding de
// desenvolvimento/teste; em produção o saldo entra por liquidação externa)
func (p *Postgres) Deposit(ctx context.Context, id string, amount uint64) (newBalance uint64, err error) {
	err = p.db.QueryRowContext(ctx,
		`UPDATE token_accounts SET balance = balance + $1 WHERE id=$2 RETURNING balance`,
		amount, id).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return newBalance, err
}

// Transfer move saldo entre contas sob autorização do dono da origem.
// Garante lock pessimista nas duas contas e registra a operação no ledger
func (p *Postgres) Transfer(ctx context.Context, source, destination, authority string, amount uint64) (transferID string, err error) {
	return p.transfer(ctx, source, destination, authority, amount, "TRANSFER")
}

// TransferOut move saldo para fora da pool sob a autoridade derivada do
// programa; a origem precisa pertencer exatamente a essa autoridade
func (p *Postgres) TransferOut(ctx context.Context, source, destination, derivedAuthority string, amount uint64) (transferID string, err error) {
	return p.transfer(ctx, source, destination, derivedAuthority, amount, "TRANSFER_OUT")
}

func (p *Postgres) transfer(ctx context.Context, source, destination, authority string, amount uint64, op string) (string, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var owner string
	var balance uint64
	err = tx.QueryRowContext(ctx, `SELECT owner, balance FROM token_accounts WHERE id=$1 FOR UPDATE`, source).
		Scan(&owner, &balance)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}

	if owner != authority {
		return "", ErrWrongAuthority
	}
	if balance < amount {
		return "", ErrInsufficientFunds
	}

	var destID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM token_accounts WHERE id=$1 FOR UPDATE`, destination).Scan(&destID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE token_accounts SET balance = balance - $1 WHERE id=$2`, amount, source); err != nil {
		return "", err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE token_accounts SET balance = balance + $1 WHERE id=$2`, amount, destination); err != nil {
		return "", err
	}

	transferID := uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO custody_transfers(id, source, destination, amount, operation) VALUES($1,$2,$3,$4,$5)`,
		transferID, source, destination, amount, op); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return transferID, nil
}

// CreditNative adiciona unidades nativas ao saldo de uma identidade,
// criando a linha se não existir
func (p *Postgres) CreditNative(ctx context.Context, identity string, amount uint64) (newBalance uint64, err error) {
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO native_balances(identity, balance) VALUES($1,$2)
		ON CONFLICT (identity) DO UPDATE SET balance = native_balances.balance + $2
		RETURNING balance`, identity, amount).Scan(&newBalance)
	return newBalance, err
}

// DebitNative cobra unidades nativas de uma identidade.
// Garante lock pessimista na linha do saldo
func (p *Postgres) DebitNative(ctx context.Context, identity string, amount uint64) (newBalance uint64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance uint64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM native_balances WHERE identity=$1 FOR UPDATE`, identity).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrInsufficientFunds
	} else if err != nil {
		return 0, err
	}

	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE native_balances SET balance = balance - $1 WHERE identity=$2 RETURNING balance`,
		amount, identity).Scan(&newBalance); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetNative retorna o saldo nativo de uma identidade (zero quando ausente)
func (p *Postgres) GetNative(ctx context.Context, identity string) (uint64, error) {
	var balance uint64
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM native_balances WHERE identity=$1`, identity).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
