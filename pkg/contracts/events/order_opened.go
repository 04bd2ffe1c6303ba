package events

// OrderOpened é publicado quando um maker abre uma ordem nova.
type OrderOpened struct {
	Slot        string `json:"slot"`
	Sport       uint8  `json:"sport"`
	League      uint32 `json:"league"`
	Event       uint64 `json:"event"`
	Period      uint8  `json:"period"`
	Market      uint16 `json:"market"`
	Player      uint32 `json:"player"`
	Side        uint8  `json:"side"`
	Stake0      uint64 `json:"stake0"`
	Stake1      uint64 `json:"stake1"`
	Bettor      string `json:"bettor"`
	FreeBet     bool   `json:"free_bet"`
	ToAggregate bool   `json:"to_aggregate"`
	// OpenOdds é a cotação decimal do lado ainda aberto, para exibição.
	OpenOdds string `json:"open_odds"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
