package events

import "testing"

func TestDisplayOdds(t *testing.T) {
	cases := []struct {
		name           string
		stake0, stake1 uint64
		side           uint8
		want           string
	}{
		{"even money", 100, 100, 0, "2"},
		{"long side", 100, 50, 0, "1.5"},
		{"short side", 100, 50, 1, "3"},
		{"rounded to three places", 100, 200, 1, "1.5"},
		{"repeating decimal", 70, 30, 1, "3.333"},
		{"zero stake side", 0, 50, 0, "0"},
		{"stakes beyond int64", 1 << 63, 1 << 63, 0, "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayOdds(tc.stake0, tc.stake1, tc.side); got != tc.want {
				t.Fatalf("odds(%d, %d, side %d): want %s, got %s",
					tc.stake0, tc.stake1, tc.side, tc.want, got)
			}
		})
	}
}
