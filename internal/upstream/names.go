package upstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
)

// StaticNames is a fixed id-to-name table implementing the name lookup
// interface. Used as seed data and in tests.
type StaticNames map[int]string

// Name resolves an id against the table.
func (n StaticNames) Name(id int) (string, bool) {
	name, ok := n[id]
	return name, ok
}

// NameService resolves item and card ids to display names through the
// upstream item-info API, with an in-process cache. Unknown and negative
// ids resolve to ("", false); lookups never fail any other way, so a flaky
// upstream degrades card combos rather than whole refresh cycles.
type NameService struct {
	http *resty.Client
	seed StaticNames

	mu    sync.RWMutex
	cache map[int]cachedName
}

type cachedName struct {
	name string
	ok   bool
}

// NewNameService creates a name lookup client for the given base URL.
// Entries in seed take precedence over remote lookups and may be nil.
func NewNameService(baseURL string, timeout time.Duration, seed StaticNames) *NameService {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)

	return &NameService{
		http:  http,
		seed:  seed,
		cache: make(map[int]cachedName),
	}
}

// itemInfoResponse mirrors the upstream item-info payload. Names arrive
// snake_cased lowercase.
type itemInfoResponse struct {
	Name string `json:"name"`
}

// Name resolves an id to its display name. Negative ids and lookup
// failures report ok == false; both results are cached.
func (s *NameService) Name(id int) (string, bool) {
	if id < 0 {
		return "", false
	}
	if s.seed != nil {
		if name, ok := s.seed[id]; ok {
			return name, true
		}
	}

	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached.name, cached.ok
	}

	name, resolved := s.fetch(id)

	s.mu.Lock()
	s.cache[id] = cachedName{name: name, ok: resolved}
	s.mu.Unlock()

	return name, resolved
}

// fetch performs the remote lookup. Any failure resolves to ("", false).
func (s *NameService) fetch(id int) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	var body itemInfoResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/items/%d", id))
	if err != nil || resp.IsError() || body.Name == "" {
		return "", false
	}

	return RebuildName(body.Name), true
}

// RebuildName turns an upstream snake_cased lowercase name into display
// form: underscores become spaces and the first letter is capitalized.
func RebuildName(raw string) string {
	name := strings.ReplaceAll(raw, "_", " ")
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
