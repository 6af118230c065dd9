package preferences

import (
	"context"
	"testing"

	"campus-market/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavorites_NoDuplicatesAndOrder(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	svc := &Service{Rdb: rdb}
	ctx := context.Background()
	user, a, b := uuid.New(), uuid.New(), uuid.New()

	ids, err := svc.GetFavorites(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = svc.AddFavorite(ctx, user, a)
	require.NoError(t, err)
	_, err = svc.AddFavorite(ctx, user, b)
	require.NoError(t, err)
	ids, err = svc.AddFavorite(ctx, user, a)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	raw, err := mr.Get("prefs:" + user.String() + ":favorites")
	require.NoError(t, err)
	assert.JSONEq(t, `["`+a.String()+`","`+b.String()+`"]`, raw)

	ids, err = svc.RemoveFavorite(ctx, user, a)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, ids)

	ids, err = svc.GetFavorites(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, ids)
}

func TestFavorites_CorruptValueReadsEmpty(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	svc := &Service{Rdb: rdb}
	user := uuid.New()
	require.NoError(t, mr.Set("prefs:"+user.String()+":favorites", "not json"))

	ids, err := svc.GetFavorites(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLanguage(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	svc := &Service{Rdb: rdb}
	ctx := context.Background()
	user := uuid.New()

	lang, err := svc.GetLanguage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, lang)

	lang, err = svc.SetLanguage(ctx, user, " RO ")
	require.NoError(t, err)
	assert.Equal(t, "ro", lang)

	lang, err = svc.GetLanguage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "ro", lang)

	_, err = svc.SetLanguage(ctx, user, "romanian")
	assert.ErrorIs(t, err, ErrInvalidLanguage)
}

func TestPreferences_RequireUser(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	svc := &Service{Rdb: rdb}

	_, err := svc.GetFavorites(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.SetLanguage(context.Background(), uuid.Nil, "en")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
