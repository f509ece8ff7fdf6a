package court

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:00-10:00", "09:00-10:00", false},
		{" 23:00-00:00 ", "23:00-00:00", false},
		{"23:00-24:00", "23:00-00:00", false},
		{"08:30-09:30", "08:30-09:30", false},
		{"09:00-11:00", "", true},
		{"10:00-09:00", "", true},
		{"9:00-10:00", "", true},
		{"09:60-10:60", "", true},
		{"24:00-01:00", "", true},
		{"0900-1000", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			slot, err := ParseTimeSlot(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, slot.String())
		})
	}
}

func TestTimeSlot_Overlaps(t *testing.T) {
	nine := TimeSlot{OpenHour: "09:00", CloseHour: "10:00"}
	ten := TimeSlot{OpenHour: "10:00", CloseHour: "11:00"}
	half := TimeSlot{OpenHour: "09:30", CloseHour: "10:30"}
	late := TimeSlot{OpenHour: "23:00", CloseHour: "00:00"}

	assert.False(t, nine.Overlaps(ten), "相邻时段不相交")
	assert.True(t, nine.Overlaps(half))
	assert.True(t, ten.Overlaps(half))
	assert.True(t, nine.Overlaps(nine))
	assert.Equal(t, 1440, late.End())
	assert.False(t, late.Overlaps(nine))
}

func TestSortSlots(t *testing.T) {
	slots := []TimeSlot{
		{OpenHour: "11:00", CloseHour: "12:00"},
		{OpenHour: "09:00", CloseHour: "10:00"},
		{OpenHour: "11:00", CloseHour: "12:00"},
	}
	assert.Equal(t, []string{"09:00-10:00", "11:00-12:00"}, SlotStrings(SortSlots(slots)))
}

func TestSlotStartTime(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	date, err := ParseDate("2026-10-20")
	require.NoError(t, err)

	start := SlotStartTime(date, TimeSlot{OpenHour: "09:30", CloseHour: "10:30"}, loc)
	assert.Equal(t, "2026-10-20T09:30:00+07:00", start.Format(time.RFC3339))
}
