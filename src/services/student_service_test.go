package services

import (
	"context"
	"testing"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentService_CreateAndGet(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
		svc := NewStudentService(tdb.Pool, clk)
		ctx := context.Background()

		created, err := svc.Create(ctx, StudentCreateParams{
			FirstName:  "Maya",
			LastName:   "Ortiz",
			GradeLevel: 5,
			Email:      "maya.ortiz@example.com",
		})
		require.NoError(t, err)
		require.NotNil(t, created)

		got, err := svc.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maya", got.FirstName)
		assert.Equal(t, 5, got.GradeLevel)
		assert.True(t, got.Enrolled())
	})
}

func TestStudentService_Create_InvalidGrade(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
	svc := NewStudentService(nil, clk)

	_, err := svc.Create(context.Background(), StudentCreateParams{
		FirstName:  "Maya",
		LastName:   "Ortiz",
		GradeLevel: 13,
	})
	assert.Error(t, err)
}

func TestStudentService_GetByID_NotFound(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
		svc := NewStudentService(tdb.Pool, clk)

		_, err := svc.GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})
}

func TestStudentService_ListByGrade(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
		svc := NewStudentService(tdb.Pool, clk)
		ctx := context.Background()

		for _, p := range []StudentCreateParams{
			{FirstName: "Ana", LastName: "Brown", GradeLevel: 3},
			{FirstName: "Ben", LastName: "Adams", GradeLevel: 3},
			{FirstName: "Cole", LastName: "Price", GradeLevel: 7},
		} {
			_, err := svc.Create(ctx, p)
			require.NoError(t, err)
		}

		third, err := svc.List(ctx, 3)
		require.NoError(t, err)
		require.Len(t, third, 2)
		// Ordered by last name
		assert.Equal(t, "Adams", third[0].LastName)
		assert.Equal(t, "Brown", third[1].LastName)

		all, err := svc.List(ctx, -1)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestStudentService_WithdrawIsIdempotent(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
		svc := NewStudentService(tdb.Pool, clk)
		ctx := context.Background()

		created, err := svc.Create(ctx, StudentCreateParams{
			FirstName: "Maya", LastName: "Ortiz", GradeLevel: 5,
		})
		require.NoError(t, err)

		first, err := svc.Withdraw(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, first.WithdrawnAt)
		firstAt := *first.WithdrawnAt

		clk.Advance(time.Hour)
		second, err := svc.Withdraw(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, second.WithdrawnAt)
		assert.True(t, firstAt.Equal(*second.WithdrawnAt), "second withdraw must not move the timestamp")
	})
}

func TestStudentService_Update(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
		svc := NewStudentService(tdb.Pool, clk)
		ctx := context.Background()

		created, err := svc.Create(ctx, StudentCreateParams{
			FirstName: "Maya", LastName: "Ortiz", GradeLevel: 5,
		})
		require.NoError(t, err)

		grade := 6
		updated, err := svc.Update(ctx, created.ID, StudentUpdateParams{GradeLevel: &grade})
		require.NoError(t, err)
		assert.Equal(t, 6, updated.GradeLevel)
		assert.Equal(t, "Maya", updated.FirstName)
	})
}
