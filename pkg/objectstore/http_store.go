package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPStore uploads objects with a PUT to <endpoint>/<key>. The service may
// answer with {"url": "..."}; otherwise the object URL is the PUT target.
type HTTPStore struct {
	endpoint      string
	publicBaseURL string
	client        *resty.Client
}

func NewHTTPStore(endpoint, publicBaseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		endpoint:      strings.TrimRight(endpoint, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		client:        resty.New().SetTimeout(timeout),
	}
}

type putResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	target := s.endpoint + "/" + key

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(target)
	if err != nil {
		return "", fmt.Errorf("object upload failed: %w", err)
	}

	var body putResponse
	_ = json.Unmarshal(resp.Body(), &body)

	if resp.IsError() {
		if body.Error != "" {
			return "", fmt.Errorf("object upload failed: status %d: %s", resp.StatusCode(), body.Error)
		}
		return "", fmt.Errorf("object upload failed: status %d", resp.StatusCode())
	}

	if body.URL != "" {
		return body.URL, nil
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	return target, nil
}
