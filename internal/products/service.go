package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/integrity"
	"github.com/odyssey-erp/orderdesk/internal/shared"
)

const duplicateSKU = "Product with this sku already exists."

type Service struct {
	repo   Repository
	policy *integrity.Policy
}

func NewService(repo Repository, policy *integrity.Policy) *Service {
	if policy == nil {
		policy = integrity.NewPolicy()
	}
	return &Service{repo: repo, policy: policy}
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)

	verr := &shared.ValidationError{}
	if err := shared.MergeValidation(verr, shared.ValidateStruct(req)); err != nil {
		return nil, err
	}
	price := decimal.Zero
	if req.Price != nil {
		price = *req.Price
		if msg := shared.CheckMoney(price); msg != "" {
			verr.Add("price", msg)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	product := Product{
		SKU:      req.SKU,
		Name:     req.Name,
		Price:    price,
		IsActive: true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	var created *Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := s.ensureSKUFree(ctx, repo, product.SKU, 0); err != nil {
			return err
		}
		var err error
		created, err = repo.Create(ctx, product)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	verr := &shared.ValidationError{}
	if req.SKU != nil {
		trimmed := strings.TrimSpace(*req.SKU)
		req.SKU = &trimmed
		if trimmed == "" {
			verr.Add("sku", "This field is required.")
		}
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		if trimmed == "" {
			verr.Add("name", "This field is required.")
		}
	}
	if err := shared.MergeValidation(verr, shared.ValidateStruct(req)); err != nil {
		return nil, err
	}
	if req.Price != nil {
		if msg := shared.CheckMoney(*req.Price); msg != "" {
			verr.Add("price", msg)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.SKU != nil {
		updates["sku"] = *req.SKU
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	var updated *Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		if len(updates) == 0 {
			updated, err = repo.Get(ctx, id)
			return err
		}
		if req.SKU != nil {
			if err := s.ensureSKUFree(ctx, repo, *req.SKU, id); err != nil {
				return err
			}
		}
		updated, err = repo.Update(ctx, id, updates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

func (s *Service) ensureSKUFree(ctx context.Context, repo Repository, sku string, selfID int64) error {
	existing, err := repo.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check sku: %w", err)
	}
	if existing.ID != selfID {
		return shared.NewValidationError("sku", duplicateSKU)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	req.Limit, req.Offset = shared.NormalizePage(req.Limit, req.Offset)
	products, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// Delete removes a product. Products used on any order line are protected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, id); err != nil {
			return err
		}
		if err := s.policy.BeforeDelete(ctx, repo.References(), integrity.Product, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
