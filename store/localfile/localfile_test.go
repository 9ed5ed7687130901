package localfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mindtastic/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStore_InitializePersistence(t *testing.T) {
	testCases := []struct {
		name         string
		persistence  bool
		content      string
		noPermission bool
		err          string
	}{
		{name: "no persistence", persistence: false},
		{name: "empty file", persistence: true},
		{name: "existing data", persistence: true, content: `{"a":"b"}`},
		{name: "null document", persistence: true, content: `null`},
		{name: "corrupt file", persistence: true, content: `{"a":`, err: "error decoding existing database file %s: unexpected EOF"},
		{name: "no permission", persistence: true, noPermission: true, err: "error opening file: open %s: permission denied"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.noPermission && os.Geteuid() == 0 {
				t.Skip("file permissions are not enforced for root")
			}
			var dbPath string
			if tc.persistence {
				f, err := os.CreateTemp(t.TempDir(), "discovery-testing-*")
				require.NoError(t, err)
				dbPath = f.Name()
				_, err = f.WriteString(tc.content)
				require.NoError(t, err)
				f.Close()

				if tc.noPermission {
					require.NoError(t, os.Chmod(dbPath, 0))
				}
			}

			lfs := New()
			defer lfs.Shutdown()
			err := lfs.InitializePersistence(dbPath)
			if tc.err != "" {
				assert.EqualError(t, err, fmt.Sprintf(tc.err, dbPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, dbPath, lfs.dbPath)
			assert.NotNil(t, lfs.store)
		})
	}
}

func TestInitializePersistenceCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")

	lfs := New()
	require.NoError(t, lfs.InitializePersistence(dbPath))
	defer lfs.Shutdown()

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestGetSetRemove(t *testing.T) {
	lfs := New()

	_, err := lfs.Get("missing")
	assert.True(t, errors.Is(err, discovery.ErrNotFound))

	require.NoError(t, lfs.Set("key", "https://storage.example.com/v1"))
	v, err := lfs.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/v1", v)

	require.NoError(t, lfs.Set("key", "https://other.example.com/v1"))
	v, err = lfs.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/v1", v)

	require.NoError(t, lfs.Remove("key"))
	require.NoError(t, lfs.Remove("key"))
	_, err = lfs.Get("key")
	assert.ErrorIs(t, err, discovery.ErrNotFound)
}

func TestFlush(t *testing.T) {
	testCases := []struct {
		name         string
		entries      map[string]string
		expected     string
		noPermission bool
		err          string
	}{
		{name: "no data", entries: map[string]string{}, expected: `{}`},
		{name: "success", entries: map[string]string{"testing": "value"}, expected: `{"testing":"value"}`},
		{name: "no permission", entries: map[string]string{"testing": "value"}, noPermission: true, err: "error writing data file %s: open %s: permission denied"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.noPermission && os.Geteuid() == 0 {
				t.Skip("file permissions are not enforced for root")
			}
			dbPath := filepath.Join(t.TempDir(), "cache.json")

			lfs := New()
			require.NoError(t, lfs.InitializePersistence(dbPath))
			for k, v := range tc.entries {
				require.NoError(t, lfs.Set(k, v))
			}

			if tc.noPermission {
				require.NoError(t, os.Chmod(dbPath, 0))
			}

			err := lfs.Flush()
			if tc.err != "" {
				assert.EqualError(t, err, fmt.Sprintf(tc.err, dbPath, dbPath))
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(dbPath)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(data))
		})
	}
}

func TestShutdownPersistsAndCloses(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.json")

	lfs := New()
	require.NoError(t, lfs.InitializePersistence(dbPath))
	require.NoError(t, lfs.Set("kinto:server-url:https://central/user", "https://storage/"))
	require.NoError(t, lfs.Shutdown())
	require.NoError(t, lfs.Shutdown())

	_, err := lfs.Get("kinto:server-url:https://central/user")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, lfs.Set("a", "b"), ErrStoreClosed)
	assert.ErrorIs(t, lfs.Remove("a"), ErrStoreClosed)

	reopened := New()
	require.NoError(t, reopened.InitializePersistence(dbPath))
	defer reopened.Shutdown()
	v, err := reopened.Get("kinto:server-url:https://central/user")
	require.NoError(t, err)
	assert.Equal(t, "https://storage/", v)
}
