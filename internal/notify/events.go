package notify

// Event types emitted by the trading loop. The notify.events config list is
// matched against these names.
const (
	EventTradePlaced  = "trade_placed"
	EventTradeSettled = "trade_settled"
	EventCapHit       = "cap_hit"
	EventOrderFailed  = "order_failed"
	EventError        = "error"
)
