package engine

import (
	"errors"
	"fmt"
)

// Taxonomia base de erros. Cada gatilho específico embrulha um destes com %w
// para que as camadas externas roteiem com errors.Is.
var (
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrAlreadyInitialized     = errors.New("account already initialized")
	ErrIncorrectProgram       = errors.New("incorrect program id")
	ErrInvalidAccountData     = errors.New("invalid account data")
)

// Gatilhos específicos.
var (
	// ErrInvalidDestination: destino da transferência não é a pool canônica.
	ErrInvalidDestination = fmt.Errorf("destination is not the canonical pool: %w", ErrInvalidArgument)
	// ErrOutcomeMismatch: tupla de desfecho do payload difere da do registro.
	ErrOutcomeMismatch = fmt.Errorf("outcome ids of record and instruction don't match: %w", ErrInvalidInstructionData)
	// ErrRecordNotBlank: tentativa de abrir ordem em registro já usado.
	ErrRecordNotBlank = fmt.Errorf("trying to start a bet in a non-empty record: %w", ErrAlreadyInitialized)
	// ErrSideTaken: tentativa de casar um lado que já foi preenchido.
	ErrSideTaken = fmt.Errorf("side has already been matched: %w", ErrAlreadyInitialized)
	// ErrSideNotYours: cancelamento do lado errado (lado em branco).
	ErrSideNotYours = fmt.Errorf("trying to cancel the wrong side: %w", ErrInvalidInstructionData)
	// ErrOddsTooHigh: cotação pedida acima da registrada além da tolerância.
	ErrOddsTooHigh = fmt.Errorf("requested odds are too high: %w", ErrInvalidArgument)
	// ErrStakeMismatch: lado oposto do payload difere do registrado.
	ErrStakeMismatch = fmt.Errorf("opposing stake doesn't equal what has already been bet: %w", ErrInvalidArgument)
	// ErrStakeTooLarge: fill parcial maior que o restante da ordem em repouso.
	ErrStakeTooLarge = fmt.Errorf("partial fill exceeds the resting stake: %w", ErrInvalidArgument)
	// ErrNotSigned: a identidade exigida não assinou a instrução.
	ErrNotSigned = fmt.Errorf("required identity isn't signing: %w", ErrInvalidArgument)
	// ErrUnauthorizedCancel: quem cancela não é o apostador do lado em aberto.
	ErrUnauthorizedCancel = fmt.Errorf("not the correct bettor cancelling: %w", ErrInvalidArgument)
	// ErrUnauthorizedRefund: refund só pode ser executado pelo admin.
	ErrUnauthorizedRefund = fmt.Errorf("refunding must be done by admin: %w", ErrInvalidArgument)
	// ErrUnauthorizedMatch: ordem agregada/free bet só casa via operador.
	ErrUnauthorizedMatch = fmt.Errorf("not authorized to match an aggregated or free-bet order: %w", ErrInvalidAccountData)
	// ErrWrongTokenAccount: conta de token de destino não pertence ao beneficiário.
	ErrWrongTokenAccount = fmt.Errorf("wrong associated token account: %w", ErrInvalidArgument)
	// ErrCounterfeitConfig: registro de atraso não é genuíno.
	ErrCounterfeitConfig = fmt.Errorf("counterfeit cancel-delay config: %w", ErrInvalidAccountData)
	// ErrTooEarly: cancelamento de ordem agregada antes do atraso mínimo.
	ErrTooEarly = fmt.Errorf("too early to cancel: %w", ErrInvalidAccountData)
	// ErrUnauthorizedTransferProgram: programa de custódia não é o oficial.
	ErrUnauthorizedTransferProgram = fmt.Errorf("unauthorized transfer program: %w", ErrIncorrectProgram)
	// ErrUnauthorizedAdmin: só o admin atualiza a configuração de atraso.
	ErrUnauthorizedAdmin = fmt.Errorf("only the admin key can update the cancel delay: %w", ErrInvalidArgument)
	// ErrRecordNotFound: slot alvo não existe no substrato.
	ErrRecordNotFound = fmt.Errorf("record not found: %w", ErrInvalidAccountData)
)
