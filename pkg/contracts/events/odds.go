package events

import "github.com/shopspring/decimal"

// DisplayOdds formata a cotação decimal de um lado ((stake0+stake1)/stakeLado)
// com três casas, para eventos e feeds. Lado sem stake devolve "0".
func DisplayOdds(stake0, stake1 uint64, side uint8) string {
	stake := stake0
	if side == 1 {
		stake = stake1
	}
	if stake == 0 {
		return "0"
	}
	total := decimal.NewFromUint64(stake0).Add(decimal.NewFromUint64(stake1))
	return total.Div(decimal.NewFromUint64(stake)).Round(3).String()
}
