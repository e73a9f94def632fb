package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	entry, err := NewEntry("DOFScraper_presupuesto", []string{"a", "b"}, map[string]any{"source": "dof"}, now)
	require.NoError(t, err)
	assert.Equal(t, "DOFScraper_presupuesto", entry.Key)
	assert.Equal(t, now, entry.Timestamp)
	assert.JSONEq(t, `["a","b"]`, string(entry.Value))

	_, err = NewEntry("", "x", nil, now)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = NewEntry("k", make(chan int), nil, now)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestEntry_Expired(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	entry := &Entry{Key: "k", Timestamp: now, Value: json.RawMessage(`1`)}

	assert.False(t, entry.Expired(now, time.Hour))
	assert.False(t, entry.Expired(now.Add(time.Hour), time.Hour))
	assert.True(t, entry.Expired(now.Add(time.Hour+time.Second), time.Hour))
}

func TestMarshalUnmarshalEntry(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	entry, err := NewEntry("k", map[string]int{"n": 1}, map[string]any{"count": 1}, now)
	require.NoError(t, err)

	data, err := MarshalEntry(entry)
	require.NoError(t, err)

	decoded, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, "k", decoded.Key)
	assert.True(t, now.Equal(decoded.Timestamp))
	assert.JSONEq(t, `{"n":1}`, string(decoded.Value))
	assert.Equal(t, float64(1), decoded.Metadata["count"])
}

func TestUnmarshalEntry_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"truncated", `{"key":"k","timestamp":"2024-03-15T10:00:00Z","value":[1,2`},
		{"missing key", `{"timestamp":"2024-03-15T10:00:00Z","value":1}`},
		{"missing timestamp", `{"key":"k","value":1}`},
		{"missing value", `{"key":"k","timestamp":"2024-03-15T10:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEntry([]byte(tt.data))
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("a"), HashKey("a"))
	assert.NotEqual(t, HashKey("a"), HashKey("b"))
	assert.Len(t, HashKey("a"), 32)
}

func TestStats_SetSize(t *testing.T) {
	var s Stats
	s.SetSize(3 * 1024 * 1024 / 2)
	assert.Equal(t, int64(1572864), s.SizeBytes)
	assert.InDelta(t, 1.5, s.SizeMB, 1e-9)
}

func TestNewSettings(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSettings(WithExpiration(time.Hour), WithClock(func() time.Time { return fixed }), WithLogger(nil))

	assert.Equal(t, time.Hour, s.Expiration)
	assert.Equal(t, fixed, s.Now())
	assert.NotNil(t, s.Logger)

	defaults := NewSettings(WithExpiration(0))
	assert.Equal(t, DefaultExpiration, defaults.Expiration)
}
