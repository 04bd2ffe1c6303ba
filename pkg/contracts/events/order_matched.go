package events

// OrderMatched é publicado em casamento total ou parcial. Em parciais,
// ChildSlot aponta a posição criada e Stake0/Stake1 refletem o restante da
// ordem pai.
type OrderMatched struct {
	Slot      string `json:"slot"`
	ChildSlot string `json:"child_slot,omitempty"`
	Side      uint8  `json:"side"`
	Stake0    uint64 `json:"stake0"`
	Stake1    uint64 `json:"stake1"`
	Taker     string `json:"taker"`
	Partial   bool   `json:"partial"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
