package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses an admin can move an order through.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// PaymentCashOnDelivery is the only payment method checkout records.
const PaymentCashOnDelivery = "cod"

// ValidOrderStatus reports whether status is one of the known order statuses.
func ValidOrderStatus(status string) bool {
	switch status {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// ShippingInfo is the address block captured at checkout.
type ShippingInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Shipping      ShippingInfo    `json:"shipping"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []OrderItem     `json:"order_items"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *ProductSummary `json:"products,omitempty"`
}

// ProductSummary is the product projection embedded in order history.
type ProductSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	ImageURL string          `json:"image_url,omitempty"`
	Price    decimal.Decimal `json:"price"`
}
