package migrate

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

func TestLoad_SortsByVersion(t *testing.T) {
	src := fstest.MapFS{
		"0002_add_index.sql":     {Data: []byte("CREATE INDEX x ON t (c);")},
		"0001_user_profiles.sql": {Data: []byte("CREATE TABLE t (c INT);")},
		"README.md":              {Data: []byte("ignored")},
	}

	got, err := Load(src)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0001", got[0].Version)
	assert.Equal(t, "user_profiles", got[0].Name)
	assert.Equal(t, "CREATE TABLE t (c INT);", got[0].body)
	assert.Equal(t, "0002", got[1].Version)
}

func TestLoad_RejectsBadNames(t *testing.T) {
	_, err := Load(fstest.MapFS{"profiles.sql": {Data: []byte("SELECT 1;")}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "migration", apperrors.GetField(err))
}

func TestLoad_RejectsDuplicateVersions(t *testing.T) {
	_, err := Load(fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 2;")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestLoad_EmbeddedSet(t *testing.T) {
	sub, err := fs.Sub(embedded, "migrations")
	require.NoError(t, err)

	got, err := Load(sub)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "0001", got[0].Version)
	assert.Contains(t, got[0].body, "user_profiles")
}

func TestRun_RequiresDB(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	assert.Error(t, err)
}
