package dto

// QueueOrder is an active order as exposed to queue clients, items already
// sorted into their stable display sequence.
type QueueOrder struct {
	ID             string      `json:"id"`
	CustomerName   string      `json:"customerName"`
	CustomerPhone  string      `json:"customerPhone"`
	DeliveryType   string      `json:"deliveryType"`
	TableNumber    string      `json:"tableNumber,omitempty"`
	PaymentMethod  string      `json:"paymentMethod"`
	Status         string      `json:"status"`
	CreatedAt      int64       `json:"createdAt"`
	ElapsedSeconds int64       `json:"elapsedSeconds"`
	Delayed        bool        `json:"delayed"`
	Total          float64     `json:"total"`
	Items          []QueueItem `json:"items"`
}

// QueueItem is an order line with its stable row key.
type QueueItem struct {
	Key          string  `json:"key"`
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	CookingPoint string  `json:"cookingPoint,omitempty"`
	PassSkewer   bool    `json:"passSkewer"`
	LineTotal    float64 `json:"lineTotal"`
}

// QueueState reports the engine's current sound preference and gate state.
type QueueState struct {
	SoundEnabled bool   `json:"soundEnabled"`
	GateState    string `json:"gateState"`
	Store        string `json:"store"`
}
