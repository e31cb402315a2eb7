package services

import (
	"context"
	"testing"

	"github.com/campusware/school-admin-server/src/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaffService_CreateAndAuthenticate(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		svc := NewStaffService(tdb.Pool)
		ctx := context.Background()

		created, err := svc.CreateStaffUser(ctx, "counselor1", "correct horse battery", "counselor")
		require.NoError(t, err)
		assert.Equal(t, "counselor", created.Role)
		assert.NotEqual(t, "correct horse battery", created.PasswordHash)

		user, err := svc.Authenticate(ctx, "counselor1", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})
}

func TestStaffService_Authenticate_BadCredentials(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		svc := NewStaffService(tdb.Pool)
		ctx := context.Background()

		_, err := svc.CreateStaffUser(ctx, "counselor1", "correct horse battery", "")
		require.NoError(t, err)

		// Wrong password and unknown user must be indistinguishable
		_, err = svc.Authenticate(ctx, "counselor1", "wrong password!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Authenticate(ctx, "nobody", "correct horse battery")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestStaffService_CreateStaffUser_ShortPassword(t *testing.T) {
	svc := NewStaffService(nil)
	_, err := svc.CreateStaffUser(context.Background(), "counselor1", "short", "")
	assert.Error(t, err)
}

func TestStaffService_SeedInitialAdmin(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		svc := NewStaffService(tdb.Pool)
		ctx := context.Background()

		// Empty credentials are a no-op
		require.NoError(t, svc.SeedInitialAdmin(ctx, "", ""))
		has, err := svc.HasStaff(ctx)
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, svc.SeedInitialAdmin(ctx, "principal", "first-run-password"))
		admin, err := svc.GetByUsername(ctx, "principal")
		require.NoError(t, err)
		assert.Equal(t, "admin", admin.Role)

		// Second seed must not create another account
		require.NoError(t, svc.SeedInitialAdmin(ctx, "principal2", "first-run-password"))
		_, err = svc.GetByUsername(ctx, "principal2")
		assert.ErrorIs(t, err, ErrStaffNotFound)
	})
}
