package domain

type EventType string

const (
	EventOrderPlaced        EventType = "order_placed"
	EventRestaurantNotified EventType = "restaurant_notified"
	EventOrderAccepted      EventType = "order_accepted"
	EventOrderRejected      EventType = "order_rejected"
	EventOrderTimedOut      EventType = "order_timed_out"
)

// StatusEvent returns the event type published for a terminal status.
func StatusEvent(s Status) EventType {
	switch s {
	case StatusAccepted:
		return EventOrderAccepted
	case StatusRejected:
		return EventOrderRejected
	default:
		return EventOrderTimedOut
	}
}

type OrderPlacedPayload struct {
	OrderID        string `json:"order_id"`
	RestaurantName string `json:"restaurant_name"`
}

type RestaurantNotifiedPayload struct {
	OrderID        string `json:"order_id"`
	RestaurantName string `json:"restaurant_name"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}
