package httpapi

import (
	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/allocation"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/shopspring/decimal"
)

type pricingTierRequest struct {
	MinQuantity  *decimal.Decimal `json:"min_quantity" validate:"required"`
	MaxQuantity  *decimal.Decimal `json:"max_quantity"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit" validate:"required"`
}

type createProductRequest struct {
	Name         string               `json:"name" validate:"required,max=200"`
	Description  string               `json:"description" validate:"max=2000"`
	Category     string               `json:"category" validate:"required,max=100"`
	Unit         string               `json:"unit" validate:"required,max=50"`
	PricingTiers []pricingTierRequest `json:"pricing_tiers" validate:"required,min=1,dive"`
}

func (r createProductRequest) toModel() models.Product {
	tiers := make([]models.PricingTier, 0, len(r.PricingTiers))
	for _, t := range r.PricingTiers {
		tier := models.PricingTier{
			MinQuantity:  *t.MinQuantity,
			PricePerUnit: *t.PricePerUnit,
		}
		if t.MaxQuantity != nil {
			tier.MaxQuantity = decimal.NewNullDecimal(*t.MaxQuantity)
		}
		tiers = append(tiers, tier)
	}
	return models.Product{
		Name:         r.Name,
		Description:  r.Description,
		Category:     r.Category,
		Unit:         r.Unit,
		PricingTiers: tiers,
	}
}

type createDealerRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phone" validate:"required,max=32"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Address   string   `json:"address" validate:"required,max=500"`
}

func (r createDealerRequest) toModel() models.Dealer {
	return models.Dealer{
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Address:   r.Address,
	}
}

type setInventoryRequest struct {
	Quantity *decimal.Decimal `json:"quantity" validate:"required"`
}

type orderItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Quantity  *decimal.Decimal `json:"quantity" validate:"required"`
}

type createOrderRequest struct {
	FarmerName        string             `json:"farmer_name" validate:"required,max=200"`
	FarmerPhone       string             `json:"farmer_phone" validate:"required,max=32"`
	FarmerEmail       string             `json:"farmer_email" validate:"omitempty,email"`
	DeliveryLatitude  *float64           `json:"delivery_latitude" validate:"required,latitude"`
	DeliveryLongitude *float64           `json:"delivery_longitude" validate:"required,longitude"`
	DeliveryAddress   string             `json:"delivery_address" validate:"required,max=500"`
	Items             []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r createOrderRequest) toAllocation() allocation.OrderRequest {
	items := make([]allocation.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, allocation.LineItem{
			ProductID: item.ProductID,
			Quantity:  *item.Quantity,
		})
	}
	return allocation.OrderRequest{
		FarmerName:      r.FarmerName,
		FarmerPhone:     r.FarmerPhone,
		FarmerEmail:     r.FarmerEmail,
		Delivery:        geo.Point{Latitude: *r.DeliveryLatitude, Longitude: *r.DeliveryLongitude},
		DeliveryAddress: r.DeliveryAddress,
		Items:           items,
	}
}

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=PENDING CONFIRMED PROCESSING OUT_FOR_DELIVERY DELIVERED CANCELLED BACKORDERED"`
}
