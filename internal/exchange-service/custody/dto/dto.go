package dto

// Espelho local dos DTOs do custody-service usados pelo cliente.

type TransferRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Authority   string `json:"authority"`
	Amount      uint64 `json:"amount"`
}

type TransferOutRequest struct {
	Source           string `json:"source"`
	Destination      string `json:"destination"`
	DerivedAuthority string `json:"derived_authority"`
	Amount           uint64 `json:"amount"`
}

type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type AccountResponse struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type NativeRequest struct {
	Identity string `json:"identity"`
	Amount   uint64 `json:"amount"`
}
