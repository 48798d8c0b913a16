package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/repository"
	"mlreviews/ingestion-service/internal/app/ingestion/repository/mocks"
)

func newCatalogFixture() (*CatalogService, *mocks.MockProductRepository, *mocks.MockReviewRepository) {
	productRepo := new(mocks.MockProductRepository)
	reviewRepo := new(mocks.MockReviewRepository)
	svc := NewCatalogService(productRepo, reviewRepo, &fakeClient{maxPage: 50})
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
	return svc, productRepo, reviewRepo
}

// ===================== Products Tests =====================

func TestListProducts_Defaults(t *testing.T) {
	svc, productRepo, _ := newCatalogFixture()
	ctx := context.Background()

	productRepo.On("List", ctx, 0, 20).Return([]entity.Product{{ID: "MLA1"}}, int64(1), nil)

	resp, err := svc.ListProducts(ctx, 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, int64(1), resp.Total)
	assert.Len(t, resp.Products, 1)
}

func TestListProducts_PageOffsetAndLimitCap(t *testing.T) {
	svc, productRepo, _ := newCatalogFixture()
	ctx := context.Background()

	productRepo.On("List", ctx, 200, 100).Return(nil, int64(0), nil)

	resp, err := svc.ListProducts(ctx, 3, 500)

	require.NoError(t, err)
	assert.Equal(t, 100, resp.Limit)
	assert.NotNil(t, resp.Products)
	assert.Empty(t, resp.Products)
}

func TestGetProduct_NotFound(t *testing.T) {
	svc, productRepo, _ := newCatalogFixture()
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "MLA404").Return(nil, repository.ErrProductNotFound)

	product, err := svc.GetProduct(ctx, " mla404 ")

	assert.Nil(t, product)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_Success(t *testing.T) {
	svc, productRepo, _ := newCatalogFixture()
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "MLA1").Return(&entity.Product{ID: "MLA1", Title: "Heladera"}, nil)

	product, err := svc.GetProduct(ctx, "MLA1")

	require.NoError(t, err)
	assert.Equal(t, "Heladera", product.Title)
}

func TestListProductsByBrand_RequiresBrand(t *testing.T) {
	svc, productRepo, _ := newCatalogFixture()

	_, err := svc.ListProductsByBrand(context.Background(), "  ", 10)

	assert.ErrorIs(t, err, ErrInvalidInput)
	productRepo.AssertNotCalled(t, "ListByBrand", mock.Anything, mock.Anything, mock.Anything)
}

// ===================== Reviews Tests =====================

func TestProductReviews_InvalidOrder(t *testing.T) {
	svc, _, reviewRepo := newCatalogFixture()
	ctx := context.Background()

	reviewRepo.On("ListByProduct", ctx, "MLA1", "likes", 20).
		Return(nil, fmt.Errorf("%w: likes", repository.ErrInvalidOrder))

	_, err := svc.ProductReviews(ctx, "MLA1", "likes", 0)

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductReviews_RepoError(t *testing.T) {
	svc, _, reviewRepo := newCatalogFixture()
	ctx := context.Background()

	reviewRepo.On("ListByProduct", ctx, "MLA1", "rate", 5).Return(nil, errors.New("db error"))

	_, err := svc.ProductReviews(ctx, "MLA1", "rate", 5)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestReviewsByRating_Validation(t *testing.T) {
	svc, _, reviewRepo := newCatalogFixture()
	ctx := context.Background()

	_, err := svc.ReviewsByRating(ctx, 6, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ReviewsByRating(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	reviewRepo.On("ListByRating", ctx, 5, 10).Return([]entity.Review{{ID: "r1", Rate: 5}}, nil)
	reviews, err := svc.ReviewsByRating(ctx, 5, 10)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestReviewsBySentiment_Validation(t *testing.T) {
	svc, _, reviewRepo := newCatalogFixture()
	ctx := context.Background()

	_, err := svc.ReviewsBySentiment(ctx, entity.SentimentLabel("angry"), 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	reviewRepo.On("ListBySentiment", ctx, entity.SentimentNegative, 20).Return([]entity.Review{}, nil)
	reviews, err := svc.ReviewsBySentiment(ctx, entity.SentimentNegative, 0)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestRecentReviews_DefaultWindow(t *testing.T) {
	svc, _, reviewRepo := newCatalogFixture()
	ctx := context.Background()

	since := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	reviewRepo.On("ListRecent", ctx, &since, 20).Return([]entity.Review{{ID: "r1"}}, nil)

	reviews, err := svc.RecentReviews(ctx, 0, 0)

	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	reviewRepo.AssertExpectations(t)
}

// ===================== Search Tests =====================

func TestSearch_RequiresQuery(t *testing.T) {
	svc, _, _ := newCatalogFixture()

	_, err := svc.Search(context.Background(), "", 10)

	assert.ErrorIs(t, err, ErrInvalidInput)
}
