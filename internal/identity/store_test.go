package identity_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatanon/internal/identity"
)

func newStore(t *testing.T) *identity.Store {
	t.Helper()
	store, err := identity.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_EmptyIsIncomplete(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	req.False(store.HasCompleteUserData())
	data, err := store.GetUserData()
	req.NoError(err)
	req.Empty(data.UserID)
	req.Empty(data.Gender)
	req.Empty(data.Interests)
}

func TestStore_SetUserDataGeneratesIDOnce(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	// Given a first profile
	req.NoError(store.SetUserData("female", []string{"music", "art"}))
	first, err := store.GetUserData()
	req.NoError(err)
	_, err = uuid.Parse(first.UserID)
	req.NoError(err)

	// When the profile is edited
	req.NoError(store.SetUserData("male", nil))

	// Then the id is kept and the rest replaced
	second, err := store.GetUserData()
	req.NoError(err)
	req.Equal(first.UserID, second.UserID)
	req.Equal("male", second.Gender)
	req.Empty(second.Interests)
	req.True(store.HasCompleteUserData())
}

func TestStore_InterestsRoundTrip(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	req.NoError(store.SetUserData("female", []string{"coffee", "programming", "travel"}))
	data, err := store.GetUserData()
	req.NoError(err)
	req.Equal([]string{"coffee", "programming", "travel"}, data.Interests)
}

func TestStore_SetUserDataRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		gender    string
		interests []string
	}{
		{name: "missing gender", gender: "", interests: nil},
		{name: "unknown gender", gender: "other", interests: nil},
		{name: "unknown interest", gender: "male", interests: []string{"skydiving"}},
		{name: "duplicate interest", gender: "male", interests: []string{"art", "art"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			err := store.SetUserData(tt.gender, tt.interests)
			if !errors.Is(err, identity.ErrInvalidUserData) {
				t.Fatalf("SetUserData() error = %v, want ErrInvalidUserData", err)
			}
			if store.HasCompleteUserData() {
				t.Error("invalid profile must not be stored")
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	req.NoError(store.SetUserData("female", []string{"reading"}))
	before, err := store.GetUserData()
	req.NoError(err)

	req.NoError(store.Clear())
	req.False(store.HasCompleteUserData())

	// A new profile gets a new id
	req.NoError(store.SetUserData("female", nil))
	after, err := store.GetUserData()
	req.NoError(err)
	req.NotEqual(before.UserID, after.UserID)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	store, err := identity.Open(dir, nil)
	req.NoError(err)
	req.NoError(store.SetUserData("male", []string{"gaming"}))
	saved, err := store.GetUserData()
	req.NoError(err)
	req.NoError(store.Close())

	reopened, err := identity.Open(dir, nil)
	req.NoError(err)
	defer reopened.Close()
	loaded, err := reopened.GetUserData()
	req.NoError(err)
	req.Equal(saved, loaded)
}
