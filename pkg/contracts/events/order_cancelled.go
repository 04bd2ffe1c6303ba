package events

// OrderCancelled é publicado quando o escrow do lado aberto é liberado, seja
// por cancelamento do dono, seja por refund administrativo.
type OrderCancelled struct {
	Slot     string `json:"slot"`
	Stake    uint64 `json:"stake"`
	Refund   bool   `json:"refund"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
