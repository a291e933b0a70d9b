package dto

// GroupAll requests generation for every group in one batch.
const GroupAll = "all"

// GenerateTimetablesRequest triggers generation for one group or all groups.
type GenerateTimetablesRequest struct {
	GroupID         string `json:"group_id" validate:"required"`
	Month           int    `json:"month" validate:"required,min=1,max=12"`
	Year            int    `json:"year" validate:"required,min=2000,max=2200"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// AllGroups reports whether the request targets the whole batch.
func (r GenerateTimetablesRequest) AllGroups() bool {
	return r.GroupID == GroupAll
}

// UnassignedSubject records a subject the engine could not place.
type UnassignedSubject struct {
	SubjectID string `json:"subject_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// GeneratedTimetable summarises one successful group generation.
type GeneratedTimetable struct {
	TimetableID string              `json:"timetable_id"`
	GroupID     string              `json:"group_id"`
	GroupName   string              `json:"group_name"`
	Assigned    int                 `json:"assigned"`
	Unassigned  []UnassignedSubject `json:"unassigned,omitempty"`
}

// GroupFailure names a group that could not be scheduled and why.
type GroupFailure struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Reason    string `json:"reason"`
}

// GenerateTimetablesResponse reports batch outcome per group.
type GenerateTimetablesResponse struct {
	Success []GeneratedTimetable `json:"success"`
	Failed  []GroupFailure       `json:"failed"`
}

// TimetableQuery looks up a stored timetable by its natural key.
type TimetableQuery struct {
	GroupID string `form:"groupId" validate:"required"`
	Month   int    `form:"month" validate:"required,min=1,max=12"`
	Year    int    `form:"year" validate:"required,min=2000,max=2200"`
}

// ManualAssignmentRequest places a subject into an explicitly chosen cell.
type ManualAssignmentRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	VenueID   string `json:"venue_id" validate:"required"`
	Day       int    `json:"day_of_week" validate:"required,min=1,max=5"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// LockSlotRequest toggles the lock flag on one assignment.
type LockSlotRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// TimetableScore carries the quality sub-scores for a timetable.
type TimetableScore struct {
	TimetableID  string  `json:"timetable_id"`
	Gap          float64 `json:"gap_score"`
	Distribution float64 `json:"distribution_score"`
	Preference   float64 `json:"preference_score"`
	Combined     float64 `json:"combined_score"`
}
