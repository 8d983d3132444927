package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	maxBodyBytes = 32 << 20

	bodyKey      = "body"
	validatorKey = "validator"
)

type validator struct {
	etag         string
	lastModified string
	body         []byte
}

// HTTPSource fetches a published CSV over HTTP. Responses are served from
// memory for the cache TTL; after that the source revalidates with
// If-None-Match / If-Modified-Since and reuses the cached body on 304.
type HTTPSource struct {
	name   string
	url    string
	client *http.Client
	cache  *cache.Cache
	logger *slog.Logger

	maxBody int64
}

// NewHTTPSource creates an HTTPSource. timeout bounds each request; ttl is
// how long a response is served without contacting the server.
func NewHTTPSource(name, url string, timeout, ttl time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
		cache:  cache.New(ttl, ttl*2),
		logger: logger,

		maxBody: maxBodyBytes,
	}
}

func (s *HTTPSource) Name() string { return s.name }

// URL returns the remote address.
func (s *HTTPSource) URL() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	res, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Load fetches the dataset. A body served from memory within the TTL has
// OriginCache; anything confirmed by the server has OriginRemote.
func (s *HTTPSource) Load(ctx context.Context) (Result, error) {
	if cached, found := s.cache.Get(bodyKey); found {
		s.logger.Debug("serving dataset from cache", "dataset", s.name)
		return Result{Body: cached.([]byte), Origin: OriginCache}, nil
	}

	body, err := s.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Body: body, Origin: OriginRemote}, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", s.name, err)
	}

	var prev *validator
	if v, found := s.cache.Get(validatorKey); found {
		prev = v.(*validator)
		if prev.etag != "" {
			req.Header.Set("If-None-Match", prev.etag)
		}
		if prev.lastModified != "" {
			req.Header.Set("If-Modified-Since", prev.lastModified)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && prev != nil:
		s.logger.Debug("dataset not modified", "dataset", s.name)
		s.cache.Set(bodyKey, prev.body, cache.DefaultExpiration)
		return prev.body, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, fmt.Errorf("fetch %s: %w: exceeds %d bytes", s.name, ErrBodyTooLarge, s.maxBody)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", s.name)
	}

	s.cache.Set(bodyKey, body, cache.DefaultExpiration)
	s.cache.Set(validatorKey, &validator{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		body:         body,
	}, cache.NoExpiration)

	return body, nil
}

// Invalidate drops the fresh copy so the next Fetch revalidates with the
// server.
func (s *HTTPSource) Invalidate() {
	s.cache.Delete(bodyKey)
}
