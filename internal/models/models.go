package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PricingTier struct {
	ID           uuid.UUID           `json:"id"`
	MinQuantity  decimal.Decimal     `json:"min_quantity"`
	MaxQuantity  decimal.NullDecimal `json:"max_quantity"`
	PricePerUnit decimal.Decimal     `json:"price_per_unit"`
}

// Bounded reports whether the tier has an upper limit.
func (t PricingTier) Bounded() bool {
	return t.MaxQuantity.Valid
}

type Product struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Category     string        `json:"category"`
	Unit         string        `json:"unit"`
	PricingTiers []PricingTier `json:"pricing_tiers"`
	Stockists    []DealerStock `json:"stockists,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Dealer struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	Latitude             float64         `json:"latitude"`
	Longitude            float64         `json:"longitude"`
	Address              string          `json:"address"`
	Rating               decimal.Decimal `json:"rating"`
	TotalOrdersFulfilled int             `json:"total_orders_fulfilled"`
	AverageDeliveryTime  decimal.Decimal `json:"average_delivery_time"`
	Inventory            []InventoryItem `json:"inventory,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// InventoryFor returns the dealer's stock row for productID.
func (d Dealer) InventoryFor(productID uuid.UUID) (InventoryItem, bool) {
	for _, inv := range d.Inventory {
		if inv.ProductID == productID {
			return inv, true
		}
	}
	return InventoryItem{}, false
}

// InventoryItem is one dealer-product stock row.
// AvailableQty = Quantity - ReservedQty and never drops below zero.
type InventoryItem struct {
	ID           uuid.UUID       `json:"id"`
	DealerID     uuid.UUID       `json:"dealer_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReservedQty  decimal.Decimal `json:"reserved_qty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type DealerStock struct {
	DealerID     uuid.UUID       `json:"dealer_id"`
	DealerName   string          `json:"dealer_name"`
	AvailableQty decimal.Decimal `json:"available_qty"`
}

type DealerSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Address string    `json:"address"`
}

type NearbyDealer struct {
	Dealer
	DistanceKm float64 `json:"distance_km"`
}

type Order struct {
	ID                     uuid.UUID       `json:"id"`
	OrderNumber            string          `json:"order_number"`
	FarmerName             string          `json:"farmer_name"`
	FarmerPhone            string          `json:"farmer_phone"`
	FarmerEmail            string          `json:"farmer_email,omitempty"`
	DeliveryLatitude       float64         `json:"delivery_latitude"`
	DeliveryLongitude      float64         `json:"delivery_longitude"`
	DeliveryAddress        string          `json:"delivery_address"`
	DealerID               *uuid.UUID      `json:"dealer_id"`
	Dealer                 *DealerSummary  `json:"dealer"`
	Status                 OrderStatus     `json:"status"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	DistanceKm             float64         `json:"distance_km"`
	EstimatedDeliveryHours int             `json:"estimated_delivery_hours"`
	ConfirmedAt            *time.Time      `json:"confirmed_at,omitempty"`
	DeliveredAt            *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	Items                  []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusBackordered    OrderStatus = "BACKORDERED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusBackordered,
}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, candidate := range orderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an order in s may move to next.
// Re-applying the current status is always allowed and has no effect.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return !s.Terminal()
}

// HoldsReservation reports whether stock for an order in s is still reserved
// at the dealer rather than consumed or released.
func (s OrderStatus) HoldsReservation() bool {
	return !s.Terminal()
}
