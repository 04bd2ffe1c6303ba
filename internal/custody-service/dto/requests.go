package dto

type CreateAccountRequest struct {
	ID    string `json:"id,omitempty"` // opcional; gerado quando vazio
	Owner string `json:"owner"`
}

type DepositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

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

type NativeRequest struct {
	Identity string `json:"identity"`
	Amount   uint64 `json:"amount"`
}
