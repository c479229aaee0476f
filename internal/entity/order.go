package entity

import "time"

// Order statuses as exposed by the storefront API.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

// Delivery types as exposed by the storefront API.
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
	DeliveryTypeTable    = "table"
)

// Order represents a customer purchase request as returned by the storefront API.
type Order struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customerName"`
	CustomerPhone string      `json:"customerPhone"`
	DeliveryType  string      `json:"deliveryType"`
	TableNumber   string      `json:"tableNumber,omitempty"`
	PaymentMethod string      `json:"paymentMethod"`
	Status        string      `json:"status"`
	CreatedAt     int64       `json:"createdAt"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
}

// OrderItem is a single line inside an order. Display identity is derived
// from product reference, cooking point and the pass-skewer flag, never from
// the position in the slice.
type OrderItem struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	CookingPoint string  `json:"cookingPoint,omitempty"`
	PassSkewer   bool    `json:"passSkewer"`
}

// Active reports whether the order belongs in the live production queue.
func (o Order) Active() bool {
	return o.Status == StatusPending || o.Status == StatusPreparing
}

// CreatedTime converts the epoch-millis creation stamp to a time.Time.
func (o Order) CreatedTime() time.Time {
	return time.UnixMilli(o.CreatedAt)
}

// LineTotal is the extended price of a single item line.
func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// ItemsTotal recomputes the order total from its item lines.
func ItemsTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}
