package discovery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindtastic/discovery"
	"github.com/mindtastic/discovery/centralrepo"
	"github.com/mindtastic/discovery/store/localfile"
	"github.com/mindtastic/discovery/store/logstore"
)

func TestResolverAgainstCentralRepository(t *testing.T) {
	records := localfile.New()
	srv := httptest.NewServer(centralrepo.NewHandler(records, "Bearer alice").Router())
	defer srv.Close()
	central := srv.URL + "/"

	cache, err := logstore.NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	r := discovery.New(srv.Client(), cache)
	ctx := context.Background()
	headers := discovery.Headers{"Authorization": "Bearer alice"}

	// Unknown user falls back to the default and caches it.
	got, err := r.Retrieve(ctx, "alice", central, headers, defaultURL)
	require.NoError(t, err)
	assert.Equal(t, defaultURL, got)

	got, err = r.Register(ctx, "alice", central, headers, storageURL)
	require.NoError(t, err)
	assert.Equal(t, storageURL, got)

	stored, err := records.Get(discovery.DeriveRecordID("alice"))
	require.NoError(t, err)
	assert.Equal(t, storageURL, stored)

	// A second client with a cold cache resolves the registered URL.
	other := discovery.New(srv.Client(), localfile.New())
	got, err = other.Retrieve(ctx, "alice", central, headers, defaultURL)
	require.NoError(t, err)
	assert.Equal(t, storageURL, got)

	_, err = other.Register(ctx, "alice", central, discovery.Headers{"Authorization": "Bearer mallory"}, "https://evil.example.com/")
	assert.ErrorIs(t, err, discovery.ErrInvalidAuth)

	// Record IDs are appended without separator, so the server sees "records<id>" and rejects it.
	_, err = discovery.New(srv.Client(), localfile.New()).Retrieve(ctx, "alice", srv.URL+"/records", headers, defaultURL)
	assert.ErrorIs(t, err, discovery.ErrCentralRepositoryMisconfigured)
}

func TestResolverAgainstUnavailableRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := discovery.New(srv.Client(), localfile.New())
	_, err := r.Retrieve(context.Background(), "alice", srv.URL+"/", authHeaders, defaultURL)
	assert.ErrorIs(t, err, discovery.ErrServerUnavailable)
}
