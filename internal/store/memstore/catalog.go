package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/models"
	"github.com/safar/go-dealer-router/internal/pricing"
	"github.com/safar/go-dealer-router/internal/store"
	"github.com/shopspring/decimal"
)

var defaultDealerRating = decimal.NewFromInt(5)

func (s *Store) CreateProduct(_ context.Context, p models.Product) (*models.Product, error) {
	p.ID = uuid.Nil
	p.CreatedAt = s.now().UTC()
	p.PricingTiers = pricing.Sorted(p.PricingTiers)
	for i := range p.PricingTiers {
		p.PricingTiers[i].ID = uuid.New()
	}
	p.Stockists = nil

	created := s.PutProduct(p)
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	p.PricingTiers = slices.Clone(p.PricingTiers)

	for key, item := range s.inventory {
		if key.productID != id {
			continue
		}
		p.Stockists = append(p.Stockists, models.DealerStock{
			DealerID:     key.dealerID,
			DealerName:   s.dealers[key.dealerID].Name,
			AvailableQty: item.AvailableQty,
		})
	}
	slices.SortFunc(p.Stockists, func(a, b models.DealerStock) int {
		if c := b.AvailableQty.Cmp(a.AvailableQty); c != 0 {
			return c
		}
		return strings.Compare(a.DealerID.String(), b.DealerID.String())
	})

	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, page, pageSize int) (*store.OffsetPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		p.PricingTiers = slices.Clone(p.PricingTiers)
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b models.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})

	return store.NewOffsetPage(pageOf(products, page, pageSize), int64(len(products)), page, pageSize), nil
}

func (s *Store) CreateDealer(_ context.Context, d models.Dealer) (*models.Dealer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.dealers {
		if existing.Email == d.Email {
			return nil, database.ErrDuplicateDealerEmail
		}
	}

	d.ID = uuid.Nil
	d.CreatedAt = s.now().UTC()
	d.Rating = defaultDealerRating
	d.TotalOrdersFulfilled = 0
	d.AverageDeliveryTime = decimal.Zero

	created := s.putDealer(d)
	return &created, nil
}

func (s *Store) GetDealer(_ context.Context, id uuid.UUID) (*models.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dealers[id]
	if !ok {
		return nil, database.ErrDealerNotFound
	}
	for key, item := range s.inventory {
		if key.dealerID == id {
			d.Inventory = append(d.Inventory, item)
		}
	}
	slices.SortFunc(d.Inventory, func(a, b models.InventoryItem) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})

	return &d, nil
}

func (s *Store) ListDealers(_ context.Context, page, pageSize int) (*store.OffsetPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dealers := make([]models.Dealer, 0, len(s.dealers))
	for _, d := range s.dealers {
		dealers = append(dealers, d)
	}
	slices.SortFunc(dealers, func(a, b models.Dealer) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return store.NewOffsetPage(pageOf(dealers, page, pageSize), int64(len(dealers)), page, pageSize), nil
}

func (s *Store) AllDealers(context.Context) ([]models.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dealers := make([]models.Dealer, 0, len(s.dealers))
	for _, d := range s.dealers {
		dealers = append(dealers, d)
	}
	slices.SortFunc(dealers, func(a, b models.Dealer) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return dealers, nil
}

func pageOf[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
