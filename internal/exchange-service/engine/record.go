package engine

// Outcome é a tupla opaca que identifica o desfecho apostado. Precisa bater
// entre o registro e qualquer instrução que tente agir sobre ele.
type Outcome struct {
	Sport  uint8
	League uint32
	Event  uint64
	Period uint8
	Market uint16
	Player uint32
}

// BetRecord é a entidade central: "ordem" enquanto um lado está em branco,
// "posição" depois de casada. Stake0/Stake1 são os valores travados de cada
// lado; o lado cujo Wallet é o sentinelo em branco continua aberto.
type BetRecord struct {
	Outcome Outcome

	Stake0 uint64
	Stake1 uint64

	Wallet0 Identity
	Wallet1 Identity

	// RentPayer recupera o depósito de armazenamento no cancelamento e, em
	// free bets, recebe a stake devolvida.
	RentPayer Identity

	// IsFreeBet indica que a autoridade financiadora difere do apostador
	// nominal (aposta patrocinada).
	IsFreeBet bool

	// PlacedAt é o timestamp unix da criação; nunca muda depois.
	PlacedAt uint64

	// ToAggregate marca a ordem para casamento centralizado pelo operador e
	// impõe o atraso de cancelamento.
	ToAggregate bool

	// Deposit é o depósito de armazenamento retido para o rent payer.
	Deposit uint64
}

// Blank informa se o registro está totalmente em branco (único estado em que
// o Maker pode escrever).
func (r *BetRecord) Blank() bool {
	return r.Wallet0.IsBlank() && r.Wallet1.IsBlank() && r.RentPayer.IsBlank()
}

// SideOpen informa se o lado indicado ainda não foi casado.
func (r *BetRecord) SideOpen(side uint8) bool {
	if side == 0 {
		return r.Wallet0.IsBlank()
	}
	return r.Wallet1.IsBlank()
}

// Stake devolve a stake do lado indicado.
func (r *BetRecord) Stake(side uint8) uint64 {
	if side == 0 {
		return r.Stake0
	}
	return r.Stake1
}

// Odds calcula a cotação decimal implícita do lado indicado:
// (stake0+stake1)/stakeLado.
func (r *BetRecord) Odds(side uint8) float64 {
	return float64(r.Stake0+r.Stake1) / float64(r.Stake(side))
}

// CancelDelay é o registro administrativo de configuração, um por implantação.
type CancelDelay struct {
	// IsReal discrimina uma configuração genuína de uma forjada/zerada.
	IsReal bool
	// Seconds é o tempo mínimo antes do cancelamento de ordens agregadas.
	Seconds uint8
	// Program é o programa que gravou a configuração; outro valor indica
	// registro falsificado.
	Program Identity
}
