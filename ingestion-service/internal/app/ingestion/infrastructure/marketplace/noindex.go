package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

// noindexClient читает отзывы через публичный endpoint сайта.
// Товар и поиск идут через API без токена.
type noindexClient struct {
	*catalogAPI
	webBaseURL string
}

func (c *noindexClient) Mode() Mode { return ModeNoindex }

func (c *noindexClient) MaxPageSize() int { return noindexMaxPageSize }

type noindexReviewsResponse struct {
	Reviews []json.RawMessage `json:"reviews"`
	Results []json.RawMessage `json:"results"`
	Paging  *struct {
		Total *int `json:"total"`
	} `json:"paging"`
}

// FetchReviewPage загружает страницу /noindex/catalog/reviews/{id}/search
func (c *noindexClient) FetchReviewPage(ctx context.Context, ref entity.ProductRef, offset, limit int) (*entity.ReviewPage, error) {
	if ref.ID == "" {
		return nil, ErrInvalidProductRef
	}
	limit = clamp(limit, 1, noindexMaxPageSize)
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("objectId", ref.ID)
	params.Set("siteId", c.site(ref))
	params.Set("isItem", "false")
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/noindex/catalog/reviews/%s/search?%s", c.webBaseURL, url.PathEscape(ref.ID), params.Encode())

	headers := http.Header{}
	headers.Set("Accept", "application/json, text/plain, */*")
	if c.userAgent != "" {
		headers.Set("User-Agent", c.userAgent)
	}
	headers.Set("Referer", fmt.Sprintf("%s/p/%s", c.webBaseURL, ref.ID))

	body, err := c.get(ctx, request{endpoint: "reviews", url: endpoint, headers: headers})
	if err != nil {
		return nil, err
	}

	var resp noindexReviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &PermanentFetchError{Endpoint: "reviews", URL: endpoint, Err: fmt.Errorf("failed to decode reviews: %w", err)}
	}

	items := resp.Reviews
	if len(items) == 0 {
		items = resp.Results
	}

	page := &entity.ReviewPage{Total: -1}
	for _, raw := range items {
		m, err := decodeObject(raw)
		if err != nil {
			page.Rejected = append(page.Rejected, entity.RejectedRecord{Reason: "malformed record", Raw: raw})
			continue
		}
		appendReview(page, noindexReview(m, raw))
	}

	if resp.Paging != nil && resp.Paging.Total != nil {
		page.Total = *resp.Paging.Total
		page.HasMore = offset+len(items) < page.Total && len(items) > 0
	} else {
		page.HasMore = len(items) >= limit
	}

	return page, nil
}

// noindexReview переносит поля ответа сайта в RawReview.
// ID получают префикс "A", чтобы не пересекаться с ID официального API.
func noindexReview(m object, raw json.RawMessage) entity.RawReview {
	id := str(m, "id")
	if id != "" {
		id = "A" + id
	}

	content := firstString(m,
		[]string{"comment", "content", "text"},
		[]string{"comment", "content"},
		[]string{"content"},
	)

	dateText := firstString(m,
		[]string{"date"},
		[]string{"comment", "date"},
		[]string{"comment", "time", "text"},
	)

	reviewer := ""
	if id != "" {
		reviewer = "user_" + id[1:]
	}

	return entity.RawReview{
		APIReviewID: id,
		Rate:        integer(m, "rating"),
		Title:       truncateTitle(content),
		Content:     content,
		DateText:    dateText,
		ReviewerID:  reviewer,
		Likes:       actionValue(m, "LIKE"),
		Dislikes:    actionValue(m, "DISLIKE"),
		Media:       firstRaw(m, "media", "pictures"),
		Source:      entity.SourceNoindex,
		Raw:         raw,
	}
}

// actionValue ищет счетчик в массиве actions по id
func actionValue(m object, actionID string) int {
	actions, _ := m["actions"].([]interface{})
	for _, a := range actions {
		action, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		if str(action, "id") == actionID {
			return integer(action, "value")
		}
	}
	return 0
}
