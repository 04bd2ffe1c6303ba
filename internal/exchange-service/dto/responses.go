package dto

// RecordResponse é a visão completa de um registro persistido.
type RecordResponse struct {
	Slot        string `json:"slot"`
	Sport       uint8  `json:"sport"`
	League      uint32 `json:"league"`
	Event       uint64 `json:"event"`
	Period      uint8  `json:"period"`
	Market      uint16 `json:"market"`
	Player      uint32 `json:"player"`
	Stake0      uint64 `json:"stake0"`
	Stake1      uint64 `json:"stake1"`
	Wallet0     string `json:"wallet0"`
	Wallet1     string `json:"wallet1"`
	RentPayer   string `json:"rent_payer"`
	IsFreeBet   bool   `json:"is_free_bet"`
	PlacedAt    uint64 `json:"placed_at"`
	ToAggregate bool   `json:"to_aggregate"`
	Deposit     uint64 `json:"deposit"`
}

// OpenOrderResponse confirma a abertura de uma ordem.
type OpenOrderResponse struct {
	Slot   string `json:"slot"`
	Status string `json:"status"`
}

// MatchResponse confirma um casamento total ou parcial.
type MatchResponse struct {
	Slot      string `json:"slot"`
	ChildSlot string `json:"child_slot,omitempty"`
	Status    string `json:"status"`
}

// CancelResponse confirma um cancelamento ou refund.
type CancelResponse struct {
	Slot   string `json:"slot"`
	Stake  uint64 `json:"stake"`
	Status string `json:"status"`
}

// InstructionResponse descreve o resultado de uma instrução bruta.
type InstructionResponse struct {
	Op        string `json:"op"`
	Slot      string `json:"slot"`
	ChildSlot string `json:"child_slot,omitempty"`
}
