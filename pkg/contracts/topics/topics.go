package topics

const (
	// Ordens
	OrderOpened    = "order_opened"
	OrderMatched   = "order_matched"
	OrderCancelled = "order_cancelled"

	// DLQs
	OrderOpenedDLQ = "order_opened_dlq"
)
