package storage

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreLoad(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, "")

	t.Run("missing key is an empty ledger", func(t *testing.T) {
		mock.ExpectGet(DefaultSlot).RedisNil()
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stored payload", func(t *testing.T) {
		b, err := Encode(sampleEntries())
		require.NoError(t, err)
		mock.ExpectGet(DefaultSlot).SetVal(string(b))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assertSameEntries(t, sampleEntries(), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed payload", func(t *testing.T) {
		mock.ExpectGet(DefaultSlot).SetVal("[{")
		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, ErrMalformedSlot)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectGet(DefaultSlot).SetErr(redis.TxFailedErr)
		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, redis.TxFailedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisStoreSave(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewRedisStoreWithClient(db, "ledger")

	b, err := Encode(sampleEntries())
	require.NoError(t, err)

	mock.ExpectSet("ledger", b, 0).SetVal("OK")
	require.NoError(t, s.Save(ctx, sampleEntries()))

	mock.ExpectSet("ledger", b, 0).SetErr(redis.TxFailedErr)
	assert.Error(t, s.Save(ctx, sampleEntries()))

	assert.NoError(t, mock.ExpectationsWereMet())
}
