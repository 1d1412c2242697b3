package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeStringFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid morning", input: "09:00"},
		{name: "valid evening", input: "19:30"},
		{name: "midnight", input: "00:00"},
		{name: "no leading zero", input: "9:00", wantErr: true},
		{name: "out of range hour", input: "25:00", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTimeStringFromString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestTimeString_AddMinutes(t *testing.T) {
	tests := []struct {
		name    string
		start   TimeString
		minutes int
		want    TimeString
		wantErr bool
	}{
		{name: "plus step", start: "10:00", minutes: 30, want: "10:30"},
		{name: "hour rollover", start: "10:45", minutes: 30, want: "11:15"},
		{name: "zero", start: "10:00", minutes: 0, want: "10:00"},
		{name: "negative", start: "10:00", minutes: -30, want: "09:30"},
		{name: "past midnight", start: "23:45", minutes: 30, wantErr: true},
		{name: "before midnight", start: "00:15", minutes: -30, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.start.AddMinutes(tt.minutes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeString_Ordering(t *testing.T) {
	assert.True(t, TimeString("09:00").IsBefore("10:00"))
	assert.False(t, TimeString("10:00").IsBefore("10:00"))
	assert.True(t, TimeString("19:00").IsAfter("09:30"))
}

func TestTimeString_At(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	got, err := TimeString("10:30").At(day, loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, loc), got)
}
