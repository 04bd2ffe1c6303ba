package engine

import (
	"encoding/hex"
	"fmt"
)

// Identity é um valor de 32 bytes que identifica carteiras, contas de custódia
// e programas. O valor zerado é o sentinelo "em branco" (lado ainda não casado).
type Identity [32]byte

var blankIdentity Identity

// IsBlank informa se a identidade é o sentinelo em branco.
func (id Identity) IsBlank() bool { return id == blankIdentity }

// Equal compara duas identidades byte a byte.
func (id Identity) Equal(other Identity) bool { return id == other }

func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// MarshalText serializa a identidade como hex (64 caracteres).
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText aceita hex de 64 caracteres.
func (id *Identity) UnmarshalText(b []byte) error {
	if len(b) != 64 {
		return fmt.Errorf("identity: want 64 hex chars, got %d", len(b))
	}
	_, err := hex.Decode(id[:], b)
	return err
}

// ParseIdentity decodifica uma identidade em hex.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Principals reúne as identidades confiáveis da implantação. São injetadas
// via configuração, nunca constantes compiladas.
type Principals struct {
	// Admin pode atualizar o atraso de cancelamento e executar refunds.
	Admin Identity
	// Operator é o agregador autorizado a casar apostas marcadas para
	// agregação ou apostas bonificadas (free bet).
	Operator Identity
	// Program identifica este programa perante o substrato de custódia.
	Program Identity
	// PoolAccount é a conta de custódia que recebe todas as stakes.
	PoolAccount Identity
	// CustodyProgram é o programa oficial de custódia de tokens; transferências
	// por qualquer outro são recusadas.
	CustodyProgram Identity
}

// IsPool informa se a conta indicada é a pool canônica.
func (p Principals) IsPool(acc Identity) bool { return acc.Equal(p.PoolAccount) }

// IsAdmin informa se a identidade é o administrador da implantação.
func (p Principals) IsAdmin(id Identity) bool { return id.Equal(p.Admin) }

// IsOperator informa se a identidade é o operador agregador.
func (p Principals) IsOperator(id Identity) bool { return id.Equal(p.Operator) }
