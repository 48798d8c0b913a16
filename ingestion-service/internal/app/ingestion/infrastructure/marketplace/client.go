package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mlreviews/ingestion-service/internal/app/ingestion/config"
	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/pkg/logger"
)

// Mode - источник отзывов
type Mode string

const (
	// ModeOnline - официальный API с токеном
	ModeOnline Mode = "online"
	// ModeNoindex - публичный endpoint сайта, без авторизации
	ModeNoindex Mode = "noindex"
)

const (
	onlineMaxPageSize  = 50
	noindexMaxPageSize = 15
	searchMaxLimit     = 50
)

// Client - единый интерфейс к маркетплейсу для обоих режимов
type Client interface {
	Mode() Mode
	MaxPageSize() int
	FetchProduct(ctx context.Context, ref entity.ProductRef) (*entity.RawProduct, error)
	FetchReviewPage(ctx context.Context, ref entity.ProductRef, offset, limit int) (*entity.ReviewPage, error)
	Search(ctx context.Context, query string, limit int) ([]entity.RawProduct, error)
}

// SelectMode: есть токен и не включен офлайн режим - online, иначе noindex
func SelectMode(accessToken string, offline bool) Mode {
	if accessToken != "" && !offline {
		return ModeOnline
	}
	return ModeNoindex
}

// Option настраивает клиент
type Option func(*options)

type options struct {
	httpClient *http.Client
	sleep      SleepFunc
}

// WithHTTPClient подменяет http.Client (в тестах - клиент httptest сервера)
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSleep подменяет ожидание между повторами
func WithSleep(fn SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// NewClient создает клиента в режиме, выбранном по конфигурации
func NewClient(cfg config.MarketplaceConfig, limiter RateLimiter, opts ...Option) Client {
	o := options{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}

	mode := SelectMode(cfg.AccessToken, cfg.OfflineMode)

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	t := &transport{
		backend:     mode,
		httpClient:  o.httpClient,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		sleep:       o.sleep,
		log:         logger.Component("marketplace").With().Str("backend", string(mode)).Logger(),
	}

	api := &catalogAPI{
		transport: t,
		baseURL:   cfg.APIBaseURL,
		siteID:    cfg.SiteID,
		userAgent: cfg.UserAgent,
	}

	if mode == ModeOnline {
		api.token = cfg.AccessToken
		return &onlineClient{catalogAPI: api}
	}

	return &noindexClient{
		catalogAPI: api,
		webBaseURL: cfg.WebBaseURL,
	}
}

// catalogAPI - запросы товаров и поиска, общие для обоих режимов.
// В режиме noindex токен пустой и запросы идут без авторизации.
type catalogAPI struct {
	*transport
	baseURL   string
	siteID    string
	userAgent string
	token     string
}

func (a *catalogAPI) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if a.userAgent != "" {
		h.Set("User-Agent", a.userAgent)
	}
	if a.token != "" {
		h.Set("Authorization", "Bearer "+a.token)
	}
	return h
}

func (a *catalogAPI) site(ref entity.ProductRef) string {
	if ref.SiteID != "" {
		return ref.SiteID
	}
	if a.siteID != "" {
		return a.siteID
	}
	return "MLA"
}

// FetchProduct загружает карточку товара из /items/{id}
func (a *catalogAPI) FetchProduct(ctx context.Context, ref entity.ProductRef) (*entity.RawProduct, error) {
	if ref.ID == "" {
		return nil, ErrInvalidProductRef
	}

	endpoint := a.baseURL + "/items/" + url.PathEscape(ref.ID)
	body, err := a.get(ctx, request{endpoint: "items", url: endpoint, headers: a.headers()})
	if err != nil {
		return nil, err
	}

	m, err := decodeObject(body)
	if err != nil {
		return nil, &PermanentFetchError{Endpoint: "items", URL: endpoint, Err: fmt.Errorf("failed to decode product: %w", err)}
	}

	product := productFromObject(m, body)
	if product.ID == "" {
		product.ID = ref.ID
	}
	if product.SiteID == "" {
		product.SiteID = a.site(ref)
	}

	return &product, nil
}

// Search ищет товары по строке запроса
func (a *catalogAPI) Search(ctx context.Context, query string, limit int) ([]entity.RawProduct, error) {
	limit = clamp(limit, 1, searchMaxLimit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", "0")

	endpoint := fmt.Sprintf("%s/sites/%s/search?%s", a.baseURL, url.PathEscape(a.site(entity.ProductRef{})), params.Encode())
	body, err := a.get(ctx, request{endpoint: "search", url: endpoint, headers: a.headers()})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &PermanentFetchError{Endpoint: "search", URL: endpoint, Err: fmt.Errorf("failed to decode search results: %w", err)}
	}

	products := make([]entity.RawProduct, 0, len(resp.Results))
	for _, raw := range resp.Results {
		m, err := decodeObject(raw)
		if err != nil {
			continue
		}
		p := productFromObject(m, raw)
		if p.ID == "" {
			continue
		}
		products = append(products, p)
	}

	return products, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
