package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// OutcomeKey: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type       string `json:"type"`        // subscribe | unsubscribe | ping
	OutcomeKey string `json:"outcome_key"` // requerido em subscribe/unsubscribe
}
