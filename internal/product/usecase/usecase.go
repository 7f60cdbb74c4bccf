package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/pkg/cache"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/pkg/search"
	"github.com/retailpos/sales-service/internal/product"
	"github.com/retailpos/sales-service/internal/product/dto"
	"go.uber.org/zap"
)

const productIndex = "products"

type productUseCase struct {
	repo   product.Repository
	cache  *cache.RedisClient
	es     *search.Client
	logger logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, cache *cache.RedisClient, es *search.Client, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		cache:  cache,
		es:     es,
		logger: log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	unique, err := uc.repo.IsSKUUnique(ctx, input.SKU, "")
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, errors.New("SKU already exists")
	}

	if input.Barcode != "" {
		unique, err := uc.repo.IsBarcodeUnique(ctx, input.Barcode, "")
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, errors.New("barcode already exists")
		}
	}

	now := time.Now()
	var barcode *string
	if input.Barcode != "" {
		barcode = &input.Barcode
	}
	var description *string
	if input.Description != "" {
		description = &input.Description
	}

	p := &model.Product{
		BaseModel:      model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		SKU:            input.SKU,
		Barcode:        barcode,
		Name:           input.Name,
		Description:    description,
		CostPrice:      input.CostPrice,
		SellPrice:      input.SellPrice,
		TaxRate:        input.TaxRate,
		Taxable:        input.Taxable,
		QuantityOnHand: input.InitialStock,
		ReorderLevel:   input.ReorderLevel,
		IsActive:       true,
	}

	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	go uc.invalidateListCache(context.Background())
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil {
		return
	}

	mapping := `{
		"mappings": {
			"properties": {
				"name": { "type": "text" },
				"description": { "type": "text" },
				"sku": { "type": "keyword" },
				"barcode": { "type": "keyword" },
				"sell_price": { "type": "double" },
				"created_at": { "type": "date" }
			}
		}
	}`
	_ = uc.es.CreateIndex(ctx, productIndex, mapping)

	if err := uc.es.Index(ctx, productIndex, p.ID, p); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return uc.repo.FindByID(ctx, id)
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	cacheKey, err := listCacheKey(filters)
	if err == nil && uc.cache != nil {
		val, err := uc.cache.Client.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached struct {
				Products []model.Product
				Count    int
			}
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached.Products, cached.Count, nil
			}
		}
	}

	if filters.SearchQuery != "" && uc.es != nil {
		q := map[string]interface{}{
			"query": map[string]interface{}{
				"query_string": map[string]interface{}{
					"query":  fmt.Sprintf("*%s*", filters.SearchQuery),
					"fields": []string{"name^3", "sku", "barcode", "description"},
				},
			},
			"from": (filters.Page - 1) * filters.PageSize,
		}
		if filters.PageSize > 0 {
			q["size"] = filters.PageSize
		}

		res, err := uc.es.Search(ctx, productIndex, q)
		if err == nil {
			var hits []model.Product
			for _, hit := range res.Hits.Hits {
				var p model.Product
				if err := json.Unmarshal(hit.Source, &p); err == nil {
					hits = append(hits, p)
				}
			}
			return hits, res.Hits.Total.Value, nil
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	products, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" && uc.cache != nil {
		cached := struct {
			Products []model.Product
			Count    int
		}{Products: products, Count: count}
		if data, err := json.Marshal(cached); err == nil {
			uc.cache.Client.Set(ctx, cacheKey, data, 5*time.Minute)
		}
	}

	return products, count, nil
}

func listCacheKey(filters *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products:list:%x", md5.Sum(data)), nil
}

func (uc *productUseCase) invalidateListCache(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	keys, err := uc.cache.Client.Keys(ctx, "products:list:*").Result()
	if err == nil && len(keys) > 0 {
		uc.cache.Client.Del(ctx, keys...)
	}
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("product not found")
	}

	if p.SKU != input.SKU {
		unique, err := uc.repo.IsSKUUnique(ctx, input.SKU, p.ID)
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, errors.New("SKU already exists")
		}
	}

	p.SKU = input.SKU
	p.Name = input.Name
	p.CostPrice = input.CostPrice
	p.SellPrice = input.SellPrice
	p.TaxRate = input.TaxRate
	p.Taxable = input.Taxable
	p.ReorderLevel = input.ReorderLevel
	p.IsActive = input.IsActive
	if input.Description != "" {
		desc := input.Description
		p.Description = &desc
	} else {
		p.Description = nil
	}
	if input.Barcode != "" {
		bc := input.Barcode
		p.Barcode = &bc
	} else {
		p.Barcode = nil
	}
	p.UpdatedAt = time.Now()

	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	go uc.invalidateListCache(context.Background())
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) DeactivateProduct(ctx context.Context, id string) error {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	if err := uc.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	go uc.invalidateListCache(context.Background())
	if uc.es != nil {
		go func() {
			if err := uc.es.Delete(context.Background(), productIndex, id); err != nil {
				uc.logger.Error("failed to delete product from ES", zap.String("product_id", id), zap.Error(err))
			}
		}()
	}

	return nil
}
