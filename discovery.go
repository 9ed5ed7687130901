package discovery

import (
	"errors"
	"net/http"
)

// DefaultNamespace prefixes every cache key written by a Resolver.
const DefaultNamespace = "kinto:server-url:"

// AuthorizationHeader must be present in the headers of every Register and Retrieve call.
const AuthorizationHeader = "Authorization"

// Headers maps request header names to values. They are sent unchanged with every request.
type Headers map[string]string

// ErrNotFound is returned by a Cache when no value is stored for a key.
var ErrNotFound = errors.New("not found")

// A Cache stores resolved storage URLs locally. Get must return an error matching ErrNotFound
// (errors.Is) if no value is stored for key.
type Cache interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Doer performs a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CacheKey returns the cache key under which the storage URL of userID, as published at
// centralRepositoryURL, is kept.
func CacheKey(centralRepositoryURL, userID string) string {
	return DefaultNamespace + centralRepositoryURL + userID
}

// record is the wire format exchanged with the central repository.
type record struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

func newRecord(url string) record {
	var r record
	r.Data.URL = url
	return r
}
