package users_test

import (
	"testing"
	"time"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/devserver/users"
	fakeuserrepo "github.com/jrsteele09/micromanager/internal/devserver/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("password"))
	require.NoError(t, users.ValidatePasswordStrength("contraseña"))
	require.Error(t, users.ValidatePasswordStrength("short"))
	require.Error(t, users.ValidatePasswordStrength("        "))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, users.ValidateEmail("jane@example.com"))
	require.Error(t, users.ValidateEmail("jane"))
	require.Error(t, users.ValidateEmail("Jane <jane@example.com>"))
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("correct horse")
	require.NoError(t, err)
	u := &users.User{PasswordHash: hash}
	require.True(t, u.CheckPassword("correct horse"))
	require.False(t, u.CheckPassword("wrong horse"))
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	require.NoError(t, repo.Insert(&users.User{Email: "Jane@Example.com", FirstName: "Jane"}))
	require.ErrorIs(t, repo.Insert(&users.User{Email: "jane@example.com"}), apperrors.ErrUserExists)

	u, err := repo.GetByEmail("JANE@example.com")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", u.Email)
	require.NotEmpty(t, u.ID)

	byID, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane", byID.FirstName)

	now := time.Now()
	require.NoError(t, repo.SetLastLogin("jane@example.com", now))
	u, err = repo.GetByEmail("jane@example.com")
	require.NoError(t, err)
	require.True(t, u.LastLogin.Equal(now))

	_, err = repo.GetByEmail("nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.ErrorIs(t, repo.SetLastLogin("nobody@example.com", now), apperrors.ErrUserNotFound)
}
