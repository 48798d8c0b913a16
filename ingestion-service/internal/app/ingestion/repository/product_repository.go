package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/pkg/metrics"
)

// productRepository реализует ProductRepository для работы с PostgreSQL через GORM
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository создает новый репозиторий товаров
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Upsert сохраняет карточку товара, пришедшую из API
func (r *productRepository) Upsert(ctx context.Context, product *entity.Product) (UpsertOutcome, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, "products")
	defer timer.ObserveDuration()

	db := r.db.WithContext(ctx)

	var existing entity.Product
	err := db.Where("id = ?", product.ID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(product)
		if res.Error != nil {
			metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
			return "", fmt.Errorf("failed to create product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return OutcomeUnchanged, nil
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return "", fmt.Errorf("failed to get product: %w", err)
	}

	product.CreatedAt = existing.CreatedAt
	keepStoredURL(&existing, product)
	if sameProduct(&existing, product) {
		return OutcomeUnchanged, nil
	}

	res := db.Model(&entity.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"title":              product.Title,
			"price":              product.Price,
			"site_id":            product.SiteID,
			"currency_id":        product.CurrencyID,
			"sold_quantity":      product.SoldQuantity,
			"available_quantity": product.AvailableQuantity,
			"marca":              product.Marca,
			"modelo":             product.Modelo,
			"caracteristicas":    product.Caracteristicas,
			"ml_additional_info": product.MLAdditionalInfo,
		})
	if res.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return "", fmt.Errorf("failed to update product: %w", res.Error)
	}

	return OutcomeUpdated, nil
}

// keepStoredURL переносит сохраненный url, если новая карточка пришла без него
func keepStoredURL(existing, product *entity.Product) {
	stored, ok := existing.MLAdditionalInfo[entity.InfoURL].(string)
	if !ok || stored == "" {
		return
	}
	if url, _ := product.MLAdditionalInfo[entity.InfoURL].(string); url != "" {
		return
	}
	if product.MLAdditionalInfo == nil {
		product.MLAdditionalInfo = datatypes.JSONMap{}
	}
	product.MLAdditionalInfo[entity.InfoURL] = stored
}

func sameProduct(a, b *entity.Product) bool {
	return a.Title == b.Title &&
		a.Price == b.Price &&
		a.SiteID == b.SiteID &&
		a.CurrencyID == b.CurrencyID &&
		a.SoldQuantity == b.SoldQuantity &&
		a.AvailableQuantity == b.AvailableQuantity &&
		a.Marca == b.Marca &&
		a.Modelo == b.Modelo &&
		sameJSONMap(a.Caracteristicas, b.Caracteristicas) &&
		sameJSONMap(a.MLAdditionalInfo, b.MLAdditionalInfo)
}

func sameJSONMap(a, b datatypes.JSONMap) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	da, errA := json.Marshal(a)
	db, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return jsonEqual(da, db)
}

// EnsureExists создает товар-заглушку, если строки еще нет.
// Существующая строка не меняется.
func (r *productRepository) EnsureExists(ctx context.Context, product *entity.Product) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(product)
	if res.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return fmt.Errorf("failed to ensure product %s: %w", product.ID, res.Error)
	}
	return nil
}

// GetByID получает товар по ID
func (r *productRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// List возвращает страницу товаров и общее количество
func (r *productRepository) List(ctx context.Context, offset, limit int) ([]entity.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entity.Product{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []entity.Product
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	return products, total, nil
}

// ListByBrand ищет товары по подстроке марки без учета регистра
func (r *productRepository) ListByBrand(ctx context.Context, brand string, limit int) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Where("marca ILIKE ?", "%"+brand+"%").
		Order("id DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products by brand: %w", err)
	}
	return products, nil
}

func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// ListWithReviewCounts возвращает товары с числом отзывов, пустой productID - все товары
func (r *productRepository) ListWithReviewCounts(ctx context.Context, productID string) ([]ProductReviewCount, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "products")
	defer timer.ObserveDuration()

	query := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Select("products.*, COUNT(reviews.id) AS review_count").
		Joins("LEFT JOIN reviews ON reviews.product_id = products.id")
	if productID != "" {
		query = query.Where("products.id = ?", productID)
	}

	var rows []ProductReviewCount
	if err := query.Group("products.id").Order("products.id").Scan(&rows).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list products with review counts: %w", err)
	}
	return rows, nil
}
