// Package paginate walks multi-page collection responses by following the
// "next" cursor relation, one page at a time.
package paginate

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-githubapp/core"
	"github.com/goliatone/go-githubapp/transport"
)

// Page is one fetched page of a collection: its decoded items in response
// order and the cursor to the next page, empty on the terminal page.
type Page[T any] struct {
	Items  []T
	Cursor string
}

// OnPage is invoked once per fetched page. Calling stop terminates the
// traversal after the current page; no further requests are issued.
type OnPage[T any] func(page Page[T], stop func())

// Paginate issues the first request through the client, then follows each
// page's next cursor until the callback stops the walk, the cursor chain
// ends, or the context is cancelled. The traversal is strictly sequential:
// page k+1 is never requested before the callback has seen page k. The
// returned slice holds the items of every visited page in page order.
func Paginate[T any](ctx context.Context, client core.Client, first core.TransportRequest, onPage OnPage[T]) ([]T, error) {
	if client == nil {
		return nil, core.BadConfigError("paginate: client is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var collected []T
	request := first
	if strings.TrimSpace(request.Method) == "" {
		request.Method = http.MethodGet
	}

	for {
		if err := ctx.Err(); err != nil {
			return collected, core.MapError(err)
		}

		res, err := client.Do(ctx, request)
		if err != nil {
			return collected, err
		}

		items, err := decodeItems[T](res.Body)
		if err != nil {
			return collected, err
		}
		page := Page[T]{
			Items:  items,
			Cursor: transport.NextCursor(res.Headers),
		}
		collected = append(collected, page.Items...)

		stopped := false
		if onPage != nil {
			onPage(page, func() { stopped = true })
		}
		if stopped || page.Cursor == "" {
			return collected, nil
		}

		// Cursor URLs are absolute; carry nothing over from the first
		// request except the method.
		request = core.TransportRequest{
			Method: http.MethodGet,
			URL:    page.Cursor,
		}
	}
}

// decodeItems accepts the two collection shapes the platform uses: a bare
// JSON array, or an object whose single array-valued field holds the items
// (search-style endpoints with total_count siblings).
func decodeItems[T any](body []byte) ([]T, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []T
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, core.TransportError(err, "paginate: decode collection page", nil)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, core.TransportError(err, "paginate: decode collection page", nil)
	}
	keys := make([]string, 0, len(envelope))
	for key := range envelope {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := strings.TrimSpace(string(envelope[key]))
		if !strings.HasPrefix(raw, "[") {
			continue
		}
		var items []T
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, core.TransportError(err, "paginate: decode collection page", map[string]any{"field": key})
		}
		return items, nil
	}
	return nil, nil
}
