package http_utils

import (
	"context"
	"net/http"
)

// NewRequest builds a request with the default user agent set.
func NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	return req, nil
}
