package users

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownUser(t *testing.T) {
	svc := NewService(afero.NewMemMapFs(), "users.json")

	_, err := svc.Get("123")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSetOverwritesPreviousLink(t *testing.T) {
	svc := NewService(afero.NewMemMapFs(), "data/users.json")

	_, err := svc.Set("123", "first")
	require.NoError(t, err)
	_, err = svc.Set("123", "second")
	require.NoError(t, err)

	link, err := svc.Get("123")
	require.NoError(t, err)
	assert.Equal(t, "second", link.Username)
	assert.Equal(t, "https://trakt.tv/users/second", link.ProfileURL())
}

func TestRoundTripPreservesOtherLinks(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "users.json", []byte(`{
  "111": "alice",
  "222": "bob"
}`), 0o644))

	svc := NewService(fs, "users.json")
	_, err := svc.Set("333", "carol")
	require.NoError(t, err)

	reloaded, err := NewService(fs, "users.json").All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"111": "alice", "222": "bob", "333": "carol"}, reloaded)

	exists, err := afero.Exists(fs, "users.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file must be renamed into place")
}

func TestSetRejectsEmptyUsername(t *testing.T) {
	svc := NewService(afero.NewMemMapFs(), "users.json")
	_, err := svc.Set("123", "   ")
	assert.Error(t, err)
}

func TestCorruptFileIsAnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "users.json", []byte(`{not json`), 0o644))

	_, err := NewService(fs, "users.json").Get("1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotRegistered))
}
