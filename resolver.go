package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mindtastic/discovery/log"
)

// maxResponseSize bounds the central repository response body that Retrieve decodes.
const maxResponseSize = 1 << 20

// Resolver publishes and resolves the storage URLs of users at a central repository.
// It keeps no state apart from its collaborators and is safe for concurrent use if they are.
// Concurrent writes for the same user are not ordered; the last cache write wins.
type Resolver struct {
	client    Doer
	cache     Cache
	namespace string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNamespace replaces DefaultNamespace as prefix of the cache keys.
func WithNamespace(prefix string) Option {
	return func(r *Resolver) {
		r.namespace = prefix
	}
}

// New creates a Resolver that sends requests through client and caches results in cache.
func New(client Doer, cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		client:    client,
		cache:     cache,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) cacheKey(centralRepositoryURL, userID string) string {
	return r.namespace + centralRepositoryURL + userID
}

// outcome is the result of dispatching a central repository response status.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeUseDefault
	outcomeFail
)

// dispatch maps a response status to an outcome. Kind is only set for outcomeFail.
// allowDefault enables the 403/404 fallback of Retrieve.
func dispatch(status int, allowDefault bool) (outcome, Kind) {
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess, 0
	case allowDefault && (status == http.StatusNotFound || status == http.StatusForbidden):
		return outcomeUseDefault, 0
	case status == http.StatusUnauthorized:
		return outcomeFail, InvalidAuth
	case status >= 500:
		return outcomeFail, ServerUnavailable
	default:
		return outcomeFail, CentralRepositoryMisconfigured
	}
}

var failureReasons = map[Kind]string{
	InvalidAuth:                    "invalid authentication headers",
	ServerUnavailable:              "server not available",
	CentralRepositoryMisconfigured: "central repository not correctly configured",
}

func checkHeaders(headers Headers) error {
	if _, ok := headers[AuthorizationHeader]; !ok {
		return newError(MissingAuthHeader, "missing Authorization header")
	}
	return nil
}

// Register publishes userStorageURL as the storage URL of userID at centralRepositoryURL and caches it.
// The record is sent to centralRepositoryURL + DeriveRecordID(userID); the base URL is not joined with
// a separator. Register always contacts the central repository, the cache is only written.
func (r *Resolver) Register(ctx context.Context, userID, centralRepositoryURL string, headers Headers, userStorageURL string) (string, error) {
	if err := checkHeaders(headers); err != nil {
		return "", err
	}

	url := centralRepositoryURL + DeriveRecordID(userID)
	body, err := json.Marshal(newRecord(userStorageURL))
	if err != nil {
		return "", fmt.Errorf("error encoding record: %w", err)
	}

	resp, err := r.do(ctx, http.MethodPut, url, headers, body)
	if err != nil {
		return "", err
	}
	defer drain(resp.Body)

	switch o, kind := dispatch(resp.StatusCode, false); o {
	case outcomeSuccess:
		if err := r.store(centralRepositoryURL, userID, userStorageURL); err != nil {
			return "", err
		}
		log.Debugf("registered %q for user record %s", userStorageURL, url)
		return userStorageURL, nil
	default:
		return "", newStatusError(kind, resp.StatusCode, url, failureReasons[kind])
	}
}

// Retrieve resolves the storage URL of userID. A cached value is returned without contacting
// centralRepositoryURL. If the central repository knows no record for userID (404 or 403),
// defaultServer is returned and cached.
func (r *Resolver) Retrieve(ctx context.Context, userID, centralRepositoryURL string, headers Headers, defaultServer string) (string, error) {
	if defaultServer == "" {
		return "", newError(MissingDefaultServer, "defaultServer should be defined")
	}
	if err := checkHeaders(headers); err != nil {
		return "", err
	}

	key := r.cacheKey(centralRepositoryURL, userID)
	cached, err := r.cache.Get(key)
	switch {
	case err == nil:
		log.Debugf("cache hit for %q", key)
		return cached, nil
	case !errors.Is(err, ErrNotFound):
		return "", fmt.Errorf("error reading cache key %q: %w", key, err)
	}

	url := centralRepositoryURL + DeriveRecordID(userID)
	resp, err := r.do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return "", err
	}
	defer drain(resp.Body)

	var storageURL string
	switch o, kind := dispatch(resp.StatusCode, true); o {
	case outcomeSuccess:
		var rec record
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&rec); err != nil {
			return "", newStatusError(CentralRepositoryMisconfigured, resp.StatusCode, url,
				fmt.Sprintf("malformed record: %v", err))
		}
		if rec.Data.URL == "" {
			return "", newStatusError(CentralRepositoryMisconfigured, resp.StatusCode, url, "record has no data.url")
		}
		storageURL = rec.Data.URL
	case outcomeUseDefault:
		log.Debugf("no record at %s (status %d), using default server", url, resp.StatusCode)
		storageURL = defaultServer
	default:
		return "", newStatusError(kind, resp.StatusCode, url, failureReasons[kind])
	}

	if err := r.store(centralRepositoryURL, userID, storageURL); err != nil {
		return "", err
	}
	return storageURL, nil
}

// Forget removes the cached storage URL of userID, so that the next Retrieve contacts the central repository.
func (r *Resolver) Forget(centralRepositoryURL, userID string) error {
	key := r.cacheKey(centralRepositoryURL, userID)
	if err := r.cache.Remove(key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("error removing cache key %q: %w", key, err)
	}
	return nil
}

func (r *Resolver) store(centralRepositoryURL, userID, storageURL string) error {
	key := r.cacheKey(centralRepositoryURL, userID)
	if err := r.cache.Set(key, storageURL); err != nil {
		return fmt.Errorf("error writing cache key %q: %w", key, err)
	}
	return nil
}

// do sends a single request. Transport errors are wrapped, not classified.
func (r *Resolver) do(ctx context.Context, method, url string, headers Headers, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating %s request for %s: %w", method, url, err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("%s %s", method, url)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending %s request to %s: %w", method, url, err)
	}
	return resp, nil
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseSize))
	_ = body.Close()
}
