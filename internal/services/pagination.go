package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/tidwall/gjson"
)

// Getter fetches a URL and returns the raw JSON body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Page is a next-link paginated response.
type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

// CursorQuery describes a cursor-paginated listing. ItemsPath and CursorPath
// are gjson paths into each response.
type CursorQuery struct {
	URL        string
	Params     url.Values
	ItemsPath  string
	CursorPath string
}

// CollectNext walks a listing by following the absolute "next" URL in each
// page until it is absent. Items keep server order. An empty first page yields
// an empty slice.
func CollectNext[T any](ctx context.Context, g Getter, firstURL string) ([]T, error) {
	out := make([]T, 0)

	for next, page := firstURL, 1; next != ""; page++ {
		body, err := g.Get(ctx, next)
		if err != nil {
			return nil, err
		}

		var p Page[T]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: failed to decode page %d of %s: %v", shared.ErrAPIRequest, page, firstURL, err)
		}
		out = append(out, p.Items...)

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}

	return out, nil
}

// CollectCursor walks a listing by passing the previous response's cursor as
// the "after" parameter until no cursor is returned.
func CollectCursor[T any](ctx context.Context, g Getter, q CursorQuery) ([]T, error) {
	base, err := url.Parse(q.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	out := make([]T, 0)
	after := ""
	for page := 1; ; page++ {
		params := base.Query()
		for k, vs := range q.Params {
			params[k] = vs
		}
		if after != "" {
			params.Set("after", after)
		}
		u := *base
		u.RawQuery = params.Encode()

		body, err := g.Get(ctx, u.String())
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("%w: page %d of %s is not valid JSON", shared.ErrAPIRequest, page, q.URL)
		}

		if items := gjson.GetBytes(body, q.ItemsPath); items.IsArray() {
			var block []T
			if err := json.Unmarshal([]byte(items.Raw), &block); err != nil {
				return nil, fmt.Errorf("%w: failed to decode %s on page %d: %v", shared.ErrAPIRequest, q.ItemsPath, page, err)
			}
			out = append(out, block...)
		}

		after = gjson.GetBytes(body, q.CursorPath).String()
		if after == "" {
			return out, nil
		}
	}
}
