package domain

import "time"

type ItemType string

const (
	ItemTypePot       ItemType = "pot"
	ItemTypeAccessory ItemType = "accessory"
	ItemTypePlant     ItemType = "plant"
)

type PaymentMethod string

const (
	PaymentBanking PaymentMethod = "BANKING"
	PaymentCOD     PaymentMethod = "COD"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipping   OrderStatus = "shipping"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CustomerInfo is captured at order time and never follows later profile edits.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type OrderItem struct {
	CartLine
	Type ItemType `json:"type"`
}

// OrderRecord is created once by checkout and is immutable on the client.
// Money fields carry formatted currency text.
type OrderRecord struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	CustomerInfo  CustomerInfo  `json:"customerInfo"`
	Items         []OrderItem   `json:"items"`
	TotalAmount   string        `json:"totalAmount"`
	ShippingFee   string        `json:"shippingFee"`
	FinalAmount   string        `json:"finalAmount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Status        OrderStatus   `json:"status"`
	OrderDate     time.Time     `json:"orderDate"`
}
