package domain

import "time"

// Market is a binary market as reported by the exchange.
type Market struct {
	Ticker    string
	YesAsk    float64 // dollars per contract
	NoAsk     float64
	CloseTime time.Time
	Result    Side // settlement side, "" until settled
}

// Settled reports whether the market has a declared settlement side.
func (m Market) Settled() bool {
	return m.Result.Valid()
}

// Ask returns the ask price for the given side.
func (m Market) Ask(side Side) float64 {
	if side == SideYes {
		return m.YesAsk
	}
	return m.NoAsk
}

// PricePoint is a single (timestamp, price) sample from the reference feed.
type PricePoint struct {
	Time  time.Time
	Price float64
}
