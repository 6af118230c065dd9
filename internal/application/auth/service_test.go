package auth

import (
	"context"
	"testing"

	"campus-market/internal/domain"
	"campus-market/internal/middleware"
	"campus-market/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignUp() SignUpInput {
	return SignUpInput{
		Email:      "  Ana.Lopez@Univ.EDU ",
		Password:   "secret123",
		FirstName:  "Ana",
		LastName:   "Lopez",
		StudyCycle: "bachelor",
		SchoolYear: "2",
	}
}

func TestSignUp_CreatesUserAndProfile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := &Service{DB: db}

	p, err := svc.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)
	assert.Equal(t, "ana.lopez@univ.edu", p.Email)
	assert.Equal(t, "Ana Lopez", p.DisplayName())

	var u domain.User
	require.NoError(t, db.First(&u, "id = ?", p.ID).Error)
	assert.NotEqual(t, "secret123", u.PasswordHash)
}

func TestSignUp_Validation(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	ctx := context.Background()

	in := validSignUp()
	in.Email = "nope"
	_, err := svc.SignUp(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidEmailFormat)

	in = validSignUp()
	in.Password = "short"
	_, err = svc.SignUp(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidPassword)

	in = validSignUp()
	in.LastName = ""
	_, err = svc.SignUp(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidName)

	in = validSignUp()
	in.Password = ""
	_, err = svc.SignUp(ctx, in)
	assert.ErrorIs(t, err, ErrEmailPasswordRequired)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	_, err := svc.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)
	_, err = svc.SignUp(context.Background(), validSignUp())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignIn(t *testing.T) {
	svc := &Service{DB: testutil.NewDB(t)}
	ctx := context.Background()
	created, err := svc.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	p, err := svc.SignIn(ctx, "ANA.LOPEZ@univ.edu", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)

	_, err = svc.SignIn(ctx, "ana.lopez@univ.edu", "wrong-pass1")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = svc.SignIn(ctx, "ghost@univ.edu", "secret123")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, ErrEmailPasswordRequired)
}

func TestVerifySession(t *testing.T) {
	_, err := VerifySession(nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = VerifySession(&middleware.SessionUser{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	u := &middleware.SessionUser{UserID: uuid.New(), Email: "a@b.c"}
	got, err := VerifySession(u)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}
