package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campustime/timetable-api/internal/dto"
	"github.com/campustime/timetable-api/internal/models"
)

type mockGroupReader struct {
	groups []models.Group
	err    error
}

func (m *mockGroupReader) List(ctx context.Context) ([]models.Group, error) {
	return m.groups, m.err
}

func (m *mockGroupReader) FindByID(ctx context.Context, id string) (*models.Group, error) {
	for i := range m.groups {
		if m.groups[i].ID == id {
			cp := m.groups[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockSubjectLister struct {
	byDepartment map[string][]models.Subject
	err          error
}

func (m *mockSubjectLister) ListEligible(ctx context.Context, department string, supporting []string) ([]models.Subject, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byDepartment[department], nil
}

type mockVenueLister struct {
	venues []models.Venue
	err    error
}

func (m *mockVenueLister) ListCandidates(ctx context.Context, department string, supporting []string, minCapacity int) ([]models.Venue, error) {
	if m.err != nil {
		return nil, m.err
	}
	var fits []models.Venue
	for _, v := range m.venues {
		if v.Capacity >= minCapacity {
			fits = append(fits, v)
		}
	}
	return fits, nil
}

type mockTimetableStore struct {
	existing  []models.Timetable
	created   []*models.Timetable
	replaced  []*models.Timetable
	createErr error
	listErr   error
}

func (m *mockTimetableStore) ListByMonthYear(ctx context.Context, month, year int) ([]models.Timetable, error) {
	return m.existing, m.listErr
}

func (m *mockTimetableStore) Create(ctx context.Context, timetable *models.Timetable) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, timetable)
	return nil
}

func (m *mockTimetableStore) ReplaceUnlocked(ctx context.Context, timetable *models.Timetable) error {
	m.replaced = append(m.replaced, timetable)
	return nil
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

type mockObserver struct {
	succeeded, failed, placed, unplaced int
}

func (m *mockObserver) ObserveGeneration(succeeded, failed, placed, unplaced int, duration time.Duration) {
	m.succeeded, m.failed, m.placed, m.unplaced = succeeded, failed, placed, unplaced
}

func testGroup(id, name, department string, size int) models.Group {
	return models.Group{ID: id, Name: name, Faculty: "Engineering", Department: department, Year: 2, Semester: 1, GroupType: models.GroupTypeWeekday, RosterSize: size}
}

func newTestGenerationService(groups *mockGroupReader, subjects *mockSubjectLister, venues *mockVenueLister, store *mockTimetableStore) (*GenerationService, *mockInvalidator, *mockObserver) {
	invalidator := &mockInvalidator{}
	observer := &mockObserver{}
	svc := NewGenerationService(groups, subjects, venues, store, invalidator, observer,
		validator.New(), zap.NewNop(), GenerationConfig{Grid: DefaultGrid()})
	return svc, invalidator, observer
}

func TestGenerateSingleGroup(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "CS", 40)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "l1"), testSubject("s2", "CS201", "l2")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	store := &mockTimetableStore{}
	svc, invalidator, observer := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Success, 1)
	assert.Empty(t, resp.Failed)
	assert.Equal(t, 2, resp.Success[0].Assigned)
	assert.Empty(t, resp.Success[0].Unassigned)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.Equal(t, "g1", created.GroupID)
	assert.Equal(t, models.TimetableStatusDraft, created.Status)
	assert.Len(t, created.Slots, 2)

	assert.Equal(t, []string{"timetables:g1:*"}, invalidator.patterns)
	assert.Equal(t, 1, observer.succeeded)
	assert.Equal(t, 2, observer.placed)
}

func TestGenerateAllGroupsSharesLecturerOccupancy(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{
		testGroup("g1", "CS-2A", "CS", 40),
		testGroup("g2", "CS-2B", "CS", 40),
	}}
	// both groups teach the same subject roster with the same lecturer
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "shared")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A"), testVenue("v2", "Hall B")}}
	store := &mockTimetableStore{}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: dto.GroupAll, Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Success, 2)
	require.Len(t, store.created, 2)

	first := store.created[0].Slots[0]
	second := store.created[1].Slots[0]
	if first.Day == second.Day {
		assert.False(t, first.Window().Overlaps(second.Window()),
			"shared lecturer must not teach two groups in overlapping windows")
	}
}

func TestGenerateDuplicateWithoutForceFails(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "CS", 40)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "l1")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	store := &mockTimetableStore{existing: []models.Timetable{{ID: "tt1", GroupID: "g1", Month: 9, Year: 2026}}}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 9, Year: 2026})
	require.NoError(t, err)
	assert.Empty(t, resp.Success)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "g1", resp.Failed[0].GroupID)
	assert.Contains(t, resp.Failed[0].Reason, "already exists")
	assert.Empty(t, store.created)
}

func TestGenerateForceRegeneratePreservesLockedSlots(t *testing.T) {
	locked := models.TimeSlotAssignment{
		ID: "slot-locked", TimetableID: "tt1", Day: models.Monday,
		Start: models.ClockMinutes(8 * 60), End: models.ClockMinutes(10 * 60),
		SubjectID: "s1", VenueID: "v1", LecturerID: "l1", Locked: true,
	}
	unlocked := models.TimeSlotAssignment{
		ID: "slot-free", TimetableID: "tt1", Day: models.Tuesday,
		Start: models.ClockMinutes(8 * 60), End: models.ClockMinutes(10 * 60),
		SubjectID: "s2", VenueID: "v1", LecturerID: "l2",
	}

	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "CS", 40)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s2", "CS201", "l2"), testSubject("s3", "CS301", "l3")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	store := &mockTimetableStore{existing: []models.Timetable{{
		ID: "tt1", GroupID: "g1", Month: 9, Year: 2026,
		Slots: []models.TimeSlotAssignment{locked, unlocked},
	}}}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{
		GroupID: "g1", Month: 9, Year: 2026, ForceRegenerate: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Success, 1)
	assert.Equal(t, "tt1", resp.Success[0].TimetableID)

	require.Len(t, store.replaced, 1)
	replaced := store.replaced[0]
	assert.Empty(t, store.created)

	var keptLocked bool
	for _, slot := range replaced.Slots {
		if slot.ID == "slot-locked" {
			keptLocked = true
			require.True(t, slot.Locked)
		}
		assert.NotEqual(t, "slot-free", slot.ID, "unlocked slots must be recomputed")
		if slot.ID != "slot-locked" {
			// new assignments must not collide with the locked cell
			collides := slot.Day == locked.Day && slot.Window().Overlaps(locked.Window()) && slot.VenueID == locked.VenueID
			assert.False(t, collides)
		}
	}
	assert.True(t, keptLocked)
}

func TestGenerateUnknownGroup(t *testing.T) {
	groups := &mockGroupReader{}
	svc, _, _ := newTestGenerationService(groups, &mockSubjectLister{}, &mockVenueLister{}, &mockTimetableStore{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "missing", Month: 9, Year: 2026})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group not found")
}

func TestGenerateInvalidPayload(t *testing.T) {
	svc, _, _ := newTestGenerationService(&mockGroupReader{}, &mockSubjectLister{}, &mockVenueLister{}, &mockTimetableStore{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 13, Year: 2026})
	require.Error(t, err)
}

func TestGenerateNoEligibleSubjectsIsGroupFailure(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "History", 40)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, &mockTimetableStore{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Contains(t, resp.Failed[0].Reason, "no eligible subjects")
}

func TestGenerateNoVenueCapacityIsGroupFailure(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "CS", 500)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "l1")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, &mockTimetableStore{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Contains(t, resp.Failed[0].Reason, "no candidate venues")
}

func TestGenerateBatchContinuesAfterGroupFailure(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{
		testGroup("g1", "HIS-1", "History", 40),
		testGroup("g2", "CS-2", "CS", 40),
	}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "l1")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	store := &mockTimetableStore{}
	svc, _, observer := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: dto.GroupAll, Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "g1", resp.Failed[0].GroupID)
	require.Len(t, resp.Success, 1)
	assert.Equal(t, "g2", resp.Success[0].GroupID)
	assert.Equal(t, 1, observer.failed)
}

func TestGeneratePersistErrorIsGroupFailure(t *testing.T) {
	groups := &mockGroupReader{groups: []models.Group{testGroup("g1", "CS-2", "CS", 40)}}
	subjects := &mockSubjectLister{byDepartment: map[string][]models.Subject{
		"CS": {testSubject("s1", "CS101", "l1")},
	}}
	venues := &mockVenueLister{venues: []models.Venue{testVenue("v1", "Hall A")}}
	store := &mockTimetableStore{createErr: errors.New("disk full")}
	svc, _, _ := newTestGenerationService(groups, subjects, venues, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetablesRequest{GroupID: "g1", Month: 9, Year: 2026})
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Contains(t, resp.Failed[0].Reason, "failed to persist")
}
