package profiles

import (
	"context"
	"testing"

	"campus-market/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile_OnlyEditableFields(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	p := testutil.CreateProfile(t, db, "Ana", "Lopez")

	got, err := svc.UpdateProfile(context.Background(), p.ID, map[string]interface{}{
		"first_name":  " Anna ",
		"school_year": "3",
		"email":       "hijack@x.io",
	})
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, "3", got.SchoolYear)
	assert.Equal(t, p.Email, got.Email)
}

func TestUpdateProfile_Errors(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	p := testutil.CreateProfile(t, db, "Ana", "Lopez")
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, p.ID, map[string]interface{}{"email": "x@y.z"})
	assert.ErrorIs(t, err, ErrNoValidFields)

	_, err = svc.UpdateProfile(ctx, p.ID, map[string]interface{}{"last_name": "L0pez"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.UpdateProfile(ctx, p.ID, map[string]interface{}{"phone": 123})
	assert.ErrorIs(t, err, ErrInvalidFieldValue)

	_, err = svc.UpdateProfile(ctx, uuid.New(), map[string]interface{}{"phone": "0600"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestGetProfiles(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}
	a := testutil.CreateProfile(t, db, "Ana", "Lopez")
	b := testutil.CreateProfile(t, db, "Ben", "Okafor")

	got, err := svc.GetProfiles(context.Background(), []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Ben", got[b.ID].FirstName)

	_, err = svc.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
