package kalshi

import "time"

// marketJSON is the wire representation of a Kalshi market. Prices are
// integer cents (1-99).
type marketJSON struct {
	Ticker    string    `json:"ticker"`
	Status    string    `json:"status"` // "open", "closed", "settled"
	YesAsk    int       `json:"yes_ask"`
	NoAsk     int       `json:"no_ask"`
	CloseTime time.Time `json:"close_time"`
	Result    string    `json:"result"` // "yes", "no", "" (unsettled)
}

// orderRequest is the body for POST /portfolio/orders.
type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`   // "yes" or "no"
	Action        string `json:"action"` // always "buy" for this bot
	Count         int64  `json:"count"`
	Type          string `json:"type"` // "limit"
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
}

// orderJSON is the order object returned after placement.
type orderJSON struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"` // "resting", "canceled", "executed", "pending"
}

// errorJSON is the error envelope on non-2xx responses. Kalshi has used both
// a nested {"error": {...}} envelope and flat code/message fields.
type errorJSON struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e errorJSON) details() (code, msg string) {
	if e.Error.Code != "" || e.Error.Message != "" {
		return e.Error.Code, e.Error.Message
	}
	return e.Code, e.Message
}
