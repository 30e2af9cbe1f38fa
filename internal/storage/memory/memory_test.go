package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cambi/internal/core"
	"cambi/internal/storage"
)

func sample(id string) core.Entry {
	return core.Entry{
		ID:              id,
		Date:            core.NewDate(2025, 1, 5),
		Description:     "entry " + id,
		AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
		AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(40)),
	}
}

func TestLoadUnwrittenIsEmpty(t *testing.T) {
	got, err := New().Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveOverwritesAndCounts(t *testing.T) {
	ctx := context.Background()
	s := New(sample("a"), sample("b"))

	require.NoError(t, s.Save(ctx, []core.Entry{sample("c")}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, 1, s.Saves())
}

func TestMalformedPayload(t *testing.T) {
	_, err := NewRaw([]byte("{not json")).Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrMalformedSlot)
}

func TestInjectedFailures(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	s.FailSave(boom)
	assert.ErrorIs(t, s.Save(ctx, nil), boom)
	assert.Equal(t, 0, s.Saves())

	s.FailLoad(boom)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, boom)
}
