package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cambi/internal/core"
)

func sampleEntries() []core.Entry {
	return []core.Entry{
		{
			ID:              "01J00000000000000000000001",
			Date:            core.NewDate(2025, 1, 5),
			Description:     "A",
			AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
			AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(40)),
		},
		{
			ID:              "01J00000000000000000000002",
			Date:            core.NewDate(2025, 2, 1),
			Description:     "B",
			AmountPrimary:   decimal.NewNullDecimal(decimal.RequireFromString("5.5")),
			AmountSecondary: decimal.NullDecimal{},
		},
	}
}

func assertSameEntries(t *testing.T, want, got []core.Entry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Date, got[i].Date)
		assert.Equal(t, want[i].Description, got[i].Description)
		assert.Equal(t, want[i].AmountPrimary.Valid, got[i].AmountPrimary.Valid)
		assert.True(t, want[i].AmountPrimary.Decimal.Equal(got[i].AmountPrimary.Decimal))
		assert.Equal(t, want[i].AmountSecondary.Valid, got[i].AmountSecondary.Valid)
		assert.True(t, want[i].AmountSecondary.Decimal.Equal(got[i].AmountSecondary.Decimal))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	b, err := Encode(sampleEntries())
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)

	b, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestDecodeEmptyAndMalformed(t *testing.T) {
	for _, in := range []string{"", "  ", "null", "[]"} {
		got, err := Decode([]byte(in))
		require.NoError(t, err, in)
		assert.Empty(t, got, in)
	}
	for _, in := range []string{"{", `{"id":1}`, `[{"id":"1","amountPrimary":"ten"}]`} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedSlot, in)
	}
}

func TestMalformedPolicyValidate(t *testing.T) {
	assert.NoError(t, PolicyFail.Validate())
	assert.NoError(t, PolicyReset.Validate())
	assert.Error(t, MalformedPolicy("ignore").Validate())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "entries.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Save(ctx, sampleEntries()))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)

	require.NoError(t, s.Save(ctx, sampleEntries()[:1]))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries()[:1], got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cambi.db")
	s, err := NewSQLiteStore(dbPath, "")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Save(ctx, sampleEntries()))
	require.NoError(t, s.Save(ctx, sampleEntries()))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, sampleEntries(), got)

	var rows int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storage_slots`).Scan(&rows))
	assert.Equal(t, 1, rows)

	ts, err := s.UpdatedAt(ctx)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	// A second store on another slot name shares the table.
	other, err := NewSQLiteStore(dbPath, "otherSlot")
	require.NoError(t, err)
	defer other.Close()
	got, err = other.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStoreMalformedPayload(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cambi.db"), DefaultSlot)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO storage_slots (name, payload, updated_at) VALUES (?, ?, ?)`,
		DefaultSlot, "not json", "2025-01-01T00:00:00Z")
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrMalformedSlot)
}
