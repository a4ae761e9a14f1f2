package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

var errCacheMiss = errors.New("cache miss")

const (
	defaultCacheKeyPrefix = "autoshop:ref:"
	defaultCacheTTL       = time.Hour
	maxResponseSizeBytes  = 2 << 20
)

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"1h"`
}

// CacheOption customizes UpstashCache.
type CacheOption func(*UpstashCache)

func WithKeyPrefix(prefix string) CacheOption {
	return func(c *UpstashCache) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			c.keyPrefix = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *UpstashCache) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// UpstashCache is a JSON value cache over the Upstash Redis REST API.
type UpstashCache struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashCache(cfg UpstashRedisConfig, opts ...CacheOption) (*UpstashCache, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	cache := &UpstashCache{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultCacheKeyPrefix,
		ttl:        ttl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache, nil
}

// Get decodes the cached value into dst, or returns errCacheMiss.
func (c *UpstashCache) Get(ctx context.Context, key string, dst any) error {
	resp, err := c.exec(ctx, []any{"GET", c.keyPrefix + key})
	if err != nil {
		return err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return errCacheMiss
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return fmt.Errorf("decode cached payload: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), dst); err != nil {
		return fmt.Errorf("unmarshal cached value: %w", err)
	}
	return nil
}

func (c *UpstashCache) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cached value: %w", err)
	}

	cmd := []any{"SET", c.keyPrefix + key, string(payload)}
	if c.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(c.ttl))
	}
	_, err = c.exec(ctx, cmd)
	return err
}

func (c *UpstashCache) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if c == nil {
		return nil, errors.New("nil cache")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

// CachedGateway serves static reference data (parts, labor operations,
// fault codes) through the cache. Everything else passes straight through.
// Cache failures are logged and never fail a lookup.
type CachedGateway struct {
	contractx.KnowledgeStore
	cache *UpstashCache
}

func NewCachedGateway(inner contractx.KnowledgeStore, cache *UpstashCache) *CachedGateway {
	return &CachedGateway{KnowledgeStore: inner, cache: cache}
}

func (g *CachedGateway) GetParts(ctx context.Context, ids []string) ([]domain.Part, error) {
	return cachedLookup(ctx, g.cache, "parts:", compact(ids), g.KnowledgeStore.GetParts)
}

func (g *CachedGateway) GetLaborOperations(ctx context.Context, ids []string) ([]domain.LaborOperation, error) {
	return cachedLookup(ctx, g.cache, "labor:", compact(ids), g.KnowledgeStore.GetLaborOperations)
}

func (g *CachedGateway) GetFaultCodes(ctx context.Context, codes []string) ([]domain.FaultCode, error) {
	return cachedLookup(ctx, g.cache, "faults:", domain.NormalizeFaultCodes(codes), g.KnowledgeStore.GetFaultCodes)
}

func cachedLookup[T any](
	ctx context.Context,
	cache *UpstashCache,
	prefix string,
	ids []string,
	load func(context.Context, []string) ([]T, error),
) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	key := prefix + strings.Join(sorted, ",")

	var cached []T
	err := cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, errCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("reference cache read failed")
	}

	out, err := load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := cache.Set(ctx, key, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("reference cache write failed")
	}
	return out, nil
}
