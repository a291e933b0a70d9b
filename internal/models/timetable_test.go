package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("08:00")
	require.NoError(t, err)
	assert.Equal(t, 480, minutes)

	minutes, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 1439, minutes)

	for _, raw := range []string{"", "8", "25:00", "08:61", "ab:cd", "08-00"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestClockMinutesJSONBoundary(t *testing.T) {
	payload, err := json.Marshal(ClockMinutes(810))
	require.NoError(t, err)
	assert.Equal(t, `"13:30"`, string(payload))

	var decoded ClockMinutes
	require.NoError(t, json.Unmarshal([]byte(`"09:05"`), &decoded))
	assert.Equal(t, ClockMinutes(545), decoded)

	assert.Error(t, json.Unmarshal([]byte(`"9am"`), &decoded))
}

func TestParseWindow(t *testing.T) {
	window, err := ParseWindow("08:00-10:00")
	require.NoError(t, err)
	assert.Equal(t, TimeWindow{Start: 480, End: 600}, window)
	assert.Equal(t, 120, window.Minutes())
	assert.Equal(t, "08:00-10:00", window.String())

	_, err = ParseWindow("10:00-08:00")
	assert.Error(t, err)
	_, err = ParseWindow("10:00")
	assert.Error(t, err)
}

func TestAssignmentWindowSerialisesAsClockTimes(t *testing.T) {
	slot := TimeSlotAssignment{
		ID: "slot-1", TimetableID: "tt-1", Day: Wednesday,
		Start: ClockMinutes(13 * 60), End: ClockMinutes(15 * 60),
		SubjectID: "sub-1", VenueID: "ven-1", LecturerID: "lec-1",
	}

	payload, err := json.Marshal(slot)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"start_time":"13:00"`)
	assert.Contains(t, string(payload), `"end_time":"15:00"`)

	var decoded TimeSlotAssignment
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, slot.Start, decoded.Start)
	assert.Equal(t, slot.Window(), decoded.Window())
}

func TestSubjectSchedulingPreferences(t *testing.T) {
	subject := Subject{Preferences: []byte(`{"preferred_days":[1,3],"preferred_ranges":[{"start":480,"end":720}],"venue_types":["LAB"]}`)}
	prefs := subject.SchedulingPreferences()
	assert.True(t, prefs.Stated())
	assert.Equal(t, []int{1, 3}, prefs.PreferredDays)
	assert.Equal(t, []string{"LAB"}, prefs.VenueTypes)

	empty := Subject{}
	assert.False(t, empty.SchedulingPreferences().Stated())

	malformed := Subject{Preferences: []byte(`{not json`)}
	assert.False(t, malformed.SchedulingPreferences().Stated())
}
