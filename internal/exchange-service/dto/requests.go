package dto

// OutcomeFields é a tupla de identificação do desfecho, plana no JSON.
type OutcomeFields struct {
	Sport  uint8  `json:"sport"`
	League uint32 `json:"league"`
	Event  uint64 `json:"event"`
	Period uint8  `json:"period"`
	Market uint16 `json:"market"`
	Player uint32 `json:"player"`
}

// OpenOrderRequest abre uma ordem nova. Slot vazio gera um slot novo.
// Destination precisa ser a conta da pool; CustodyProgram vazio assume o
// programa oficial configurado.
type OpenOrderRequest struct {
	OutcomeFields
	Slot           string `json:"slot,omitempty"`
	Stake0         uint64 `json:"stake0"`
	Stake1         uint64 `json:"stake1"`
	Side           uint8  `json:"side"`
	ToAggregate    bool   `json:"to_aggregate"`
	Source         string `json:"source"`
	Destination    string `json:"destination,omitempty"`
	Authority      string `json:"authority"`
	Bettor         string `json:"bettor"`
	RentPayer      string `json:"rent_payer"`
	CustodyProgram string `json:"custody_program,omitempty"`
}

// MatchOrderRequest casa por inteiro o lado aberto do slot alvo.
type MatchOrderRequest struct {
	OutcomeFields
	Stake0         uint64 `json:"stake0"`
	Stake1         uint64 `json:"stake1"`
	Side           uint8  `json:"side"`
	Source         string `json:"source"`
	Destination    string `json:"destination,omitempty"`
	Bettor         string `json:"bettor"`
	CustodyProgram string `json:"custody_program,omitempty"`
}

// PartialMatchOrderRequest casa uma porção do lado aberto; ChildSlot vazio
// aloca um slot novo para a posição casada.
type PartialMatchOrderRequest struct {
	MatchOrderRequest
	RentPayer string `json:"rent_payer"`
	ChildSlot string `json:"child_slot,omitempty"`
}

// CancelOrderRequest devolve o escrow do lado aberto ao cancelador.
type CancelOrderRequest struct {
	OutcomeFields
	Side           uint8  `json:"side"`
	Source         string `json:"source,omitempty"`
	Destination    string `json:"destination"`
	Canceller      string `json:"canceller"`
	RentPayer      string `json:"rent_payer"`
	CustodyProgram string `json:"custody_program,omitempty"`
}

// SetDelayRequest atualiza o atraso de cancelamento de ordens agregadas.
type SetDelayRequest struct {
	Seconds uint8  `json:"seconds"`
	Admin   string `json:"admin"`
}

// RawInstruction submete uma instrução binária no formato de fio (legado ou
// etiquetado).
type RawInstruction struct {
	Accounts []RawAccountMeta `json:"accounts"`
	// DataBase64 é o payload binário em base64.
	DataBase64 string `json:"data_base64"`
}

type RawAccountMeta struct {
	Key    string `json:"key"`
	Signer bool   `json:"signer"`
}
