package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s := LocalStore{Dir: dir}
	require.NoError(t, s.Put(context.Background(), "run-1/LDK.log", []byte("boom"), "text/plain"))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "LDK.log"))
	require.NoError(t, err)
	assert.Equal(t, "boom", string(data))
}

func TestNullStorePut(t *testing.T) {
	assert.NoError(t, NullStore{}.Put(context.Background(), "k", nil, ""))
}

func TestNewMinIOStoreRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinIOStore(context.Background(), "", "a", "s", "logs", "", false)
	require.Error(t, err)
	_, err = NewMinIOStore(context.Background(), "localhost:9000", "a", "s", "", "", false)
	require.Error(t, err)
}
