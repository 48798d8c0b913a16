package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

// onlineClient работает с официальным API по токену
type onlineClient struct {
	*catalogAPI
}

func (c *onlineClient) Mode() Mode { return ModeOnline }

func (c *onlineClient) MaxPageSize() int { return onlineMaxPageSize }

type onlineReviewsResponse struct {
	Paging *struct {
		Total  *int `json:"total"`
		Offset int  `json:"offset"`
		Limit  int  `json:"limit"`
	} `json:"paging"`
	Reviews []json.RawMessage `json:"reviews"`
	Results []json.RawMessage `json:"results"`
}

// FetchReviewPage загружает страницу /reviews/item/{id}
func (c *onlineClient) FetchReviewPage(ctx context.Context, ref entity.ProductRef, offset, limit int) (*entity.ReviewPage, error) {
	if ref.ID == "" {
		return nil, ErrInvalidProductRef
	}
	limit = clamp(limit, 1, onlineMaxPageSize)
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	endpoint := fmt.Sprintf("%s/reviews/item/%s?%s", c.baseURL, url.PathEscape(ref.ID), params.Encode())
	body, err := c.get(ctx, request{endpoint: "reviews", url: endpoint, headers: c.headers()})
	if err != nil {
		return nil, err
	}

	var resp onlineReviewsResponse
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
		appendReview(page, onlineReview(m, raw))
	}

	if resp.Paging != nil && resp.Paging.Total != nil {
		page.Total = *resp.Paging.Total
		page.HasMore = offset+len(items) < page.Total && len(items) > 0
	} else {
		page.HasMore = len(items) >= limit
	}

	return page, nil
}

func onlineReview(m object, raw json.RawMessage) entity.RawReview {
	content := firstString(m, []string{"content"}, []string{"text"})
	title := str(m, "title")
	if title == "" {
		title = truncateTitle(content)
	}

	return entity.RawReview{
		APIReviewID: str(m, "id"),
		Rate:        integer(m, "rate"),
		Title:       title,
		Content:     content,
		DateText:    firstString(m, []string{"date_created"}, []string{"date"}),
		ReviewerID:  firstString(m, []string{"reviewer_id"}, []string{"user_id"}),
		Likes:       integer(m, "likes"),
		Dislikes:    integer(m, "dislikes"),
		Media:       firstRaw(m, "media", "pictures"),
		Source:      entity.SourceAPI,
		Raw:         raw,
	}
}
