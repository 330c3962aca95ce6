package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLastUpdated(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "rfc3339 nano",
			in:   "2026-08-15T09:30:00.123456789Z",
			want: time.Date(2026, 8, 15, 9, 30, 0, 123456789, time.UTC),
		},
		{
			name: "rfc3339",
			in:   "2026-08-15T09:30:00Z",
			want: time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 with offset normalised to utc",
			in:   "2026-08-15T11:30:00+02:00",
			want: time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "iso without zone",
			in:   "2026-08-15T09:30:00",
			want: time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "space separated",
			in:   "2026-08-15 09:30:00",
			want: time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "date only",
			in:   "2026-08-15",
			want: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLastUpdated(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseLastUpdated_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "15/08/2026", "1692090000"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLastUpdated(in)
			assert.Error(t, err)
		})
	}
}

func TestFailed(t *testing.T) {
	meta := Failed(errors.New("table does not exist"))

	assert.False(t, meta.Exists)
	assert.Equal(t, "table does not exist", meta.Error)
	assert.NotNil(t, meta.Columns)
	assert.Empty(t, meta.Columns)
	assert.Zero(t, meta.Rows)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://u@localhost/db")

	assert.Equal(t, "postgres://u@localhost/db", cfg.DSN)
	assert.Positive(t, cfg.MaxConns)
	assert.Positive(t, cfg.QueryTimeout)
	assert.Positive(t, cfg.ConnectTimeout)
}
