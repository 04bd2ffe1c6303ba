package dto

type AccountResponse struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type NativeResponse struct {
	Identity string `json:"identity"`
	Balance  uint64 `json:"balance"`
}
