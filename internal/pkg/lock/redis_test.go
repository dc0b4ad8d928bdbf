package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/pkg/lock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_Obtain(t *testing.T) {
	ctx := context.Background()

	t.Run("obtains and releases", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		locker := lock.NewRedisLocker(rdb, "leave-engine")

		mock.ExpectSetNX("leave-engine:lock:reminders:2025-03-10", "locked", time.Minute).SetVal(true)
		mock.ExpectDel("leave-engine:lock:reminders:2025-03-10").SetVal(1)

		release, err := locker.Obtain(ctx, "reminders:2025-03-10", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("held elsewhere", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		locker := lock.NewRedisLocker(rdb, "leave-engine")

		mock.ExpectSetNX("leave-engine:lock:reminders", "locked", time.Minute).SetVal(false)

		_, err := locker.Obtain(ctx, "reminders", time.Minute)
		assert.ErrorIs(t, err, lock.ErrNotObtained)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		locker := lock.NewRedisLocker(rdb, "leave-engine")

		mock.ExpectSetNX("leave-engine:lock:reminders", "locked", time.Minute).SetErr(errors.New("connection refused"))

		_, err := locker.Obtain(ctx, "reminders", time.Minute)
		require.Error(t, err)
		assert.NotErrorIs(t, err, lock.ErrNotObtained)
	})
}
