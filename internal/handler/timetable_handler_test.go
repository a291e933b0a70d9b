package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campustime/timetable-api/internal/models"
	"github.com/campustime/timetable-api/internal/service"
	appErrors "github.com/campustime/timetable-api/pkg/errors"
	"github.com/campustime/timetable-api/pkg/export"
)

type fakeGroups struct {
	groups []models.Group
}

func (f *fakeGroups) List(ctx context.Context) ([]models.Group, error) { return f.groups, nil }

func (f *fakeGroups) FindByID(ctx context.Context, id string) (*models.Group, error) {
	for i := range f.groups {
		if f.groups[i].ID == id {
			cp := f.groups[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeSubjects struct {
	subjects []models.Subject
}

func (f *fakeSubjects) ListEligible(ctx context.Context, department string, supporting []string) ([]models.Subject, error) {
	return f.subjects, nil
}

func (f *fakeSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for i := range f.subjects {
		if f.subjects[i].ID == id {
			cp := f.subjects[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeVenues struct {
	venues []models.Venue
}

func (f *fakeVenues) ListCandidates(ctx context.Context, department string, supporting []string, minCapacity int) ([]models.Venue, error) {
	return f.venues, nil
}

func (f *fakeVenues) FindByID(ctx context.Context, id string) (*models.Venue, error) {
	for i := range f.venues {
		if f.venues[i].ID == id {
			cp := f.venues[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeLecturers struct{}

func (f *fakeLecturers) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	return &models.Lecturer{ID: id, FullName: "Lecturer " + id}, nil
}

type fakeTimetables struct {
	stored map[string]*models.Timetable
}

func newFakeTimetables() *fakeTimetables {
	return &fakeTimetables{stored: map[string]*models.Timetable{}}
}

func (f *fakeTimetables) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if tt, ok := f.stored[id]; ok {
		cp := *tt
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTimetables) FindByGroupMonthYear(ctx context.Context, groupID string, month, year int) (*models.Timetable, error) {
	for _, tt := range f.stored {
		if tt.GroupID == groupID && tt.Month == month && tt.Year == year {
			cp := *tt
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTimetables) ListByMonthYear(ctx context.Context, month, year int) ([]models.Timetable, error) {
	var out []models.Timetable
	for _, tt := range f.stored {
		if tt.Month == month && tt.Year == year {
			out = append(out, *tt)
		}
	}
	return out, nil
}

func (f *fakeTimetables) Create(ctx context.Context, timetable *models.Timetable) error {
	cp := *timetable
	f.stored[timetable.ID] = &cp
	return nil
}

func (f *fakeTimetables) ReplaceUnlocked(ctx context.Context, timetable *models.Timetable) error {
	cp := *timetable
	f.stored[timetable.ID] = &cp
	return nil
}

func (f *fakeTimetables) FindSlot(ctx context.Context, slotID string) (*models.TimeSlotAssignment, error) {
	for _, tt := range f.stored {
		for i := range tt.Slots {
			if tt.Slots[i].ID == slotID {
				cp := tt.Slots[i]
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTimetables) InsertSlot(ctx context.Context, slot *models.TimeSlotAssignment) error {
	if tt, ok := f.stored[slot.TimetableID]; ok {
		tt.Slots = append(tt.Slots, *slot)
	}
	return nil
}

func (f *fakeTimetables) UpdateSlotPlacement(ctx context.Context, slot *models.TimeSlotAssignment) error {
	tt, ok := f.stored[slot.TimetableID]
	if !ok {
		return sql.ErrNoRows
	}
	for i := range tt.Slots {
		if tt.Slots[i].ID == slot.ID {
			tt.Slots[i] = *slot
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeTimetables) SetSlotLock(ctx context.Context, slotID string, locked bool) error {
	for _, tt := range f.stored {
		for i := range tt.Slots {
			if tt.Slots[i].ID == slotID {
				tt.Slots[i].Locked = locked
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (f *fakeTimetables) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	if tt, ok := f.stored[id]; ok {
		tt.Status = status
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeTimetables) Delete(ctx context.Context, id string) error {
	delete(f.stored, id)
	return nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (noopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (noopCache) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func buildTimetableRouter(store *fakeTimetables) *gin.Engine {
	gin.SetMode(gin.TestMode)

	groups := &fakeGroups{groups: []models.Group{{
		ID: "g1", Name: "CS-2", Faculty: "Engineering", Department: "CS",
		Year: 2, Semester: 1, GroupType: models.GroupTypeWeekday, RosterSize: 40,
	}}}
	subjects := &fakeSubjects{subjects: []models.Subject{
		{ID: "s1", Code: "CS101", Name: "Algorithms", Department: "CS", LecturerID: "l1", Active: true},
		{ID: "s2", Code: "CS201", Name: "Databases", Department: "CS", LecturerID: "l2", Active: true},
	}}
	venues := &fakeVenues{venues: []models.Venue{{
		ID: "v1", Name: "Hall A", Department: "CS", VenueType: "LECTURE_HALL", Capacity: 60, Active: true,
	}}}

	validate := validator.New()
	logger := zap.NewNop()

	generationSvc := service.NewGenerationService(groups, subjects, venues, store, noopCache{}, nil,
		validate, logger, service.GenerationConfig{Grid: service.DefaultGrid()})
	timetableSvc := service.NewTimetableService(store, groups, subjects, venues, &fakeLecturers{},
		noopCache{}, export.NewPDFExporter(), export.NewCSVExporter(), validate, logger,
		service.TimetableConfig{CacheTTL: time.Minute})
	scoreSvc := service.NewScoreService(store, subjects, logger, service.ScoreConfig{})

	h := NewTimetableHandler(generationSvc, timetableSvc, scoreSvc)

	r := gin.New()
	r.POST("/timetables/generate", h.Generate)
	r.GET("/timetables", h.List)
	r.GET("/timetables/:id", h.Get)
	r.GET("/timetables/:id/score", h.Score)
	r.GET("/timetables/:id/export", h.Export)
	r.POST("/timetables/:id/assignments", h.ManualAssign)
	r.PATCH("/timetables/:id/slots/:slotId/lock", h.LockSlot)
	r.POST("/timetables/:id/publish", h.Publish)
	r.DELETE("/timetables/:id", h.Delete)
	return r
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func jsonRequest(method, path, payload string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTimetableRoutes(t *testing.T) {
	store := newFakeTimetables()
	router := buildTimetableRouter(store)

	t.Run("generate", func(t *testing.T) {
		resp := performRequest(router, jsonRequest(http.MethodPost, "/timetables/generate",
			`{"group_id":"g1","month":9,"year":2026}`))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"success"`)
		assert.Contains(t, resp.Body.String(), `"g1"`)
		require.Len(t, store.stored, 1)
	})

	t.Run("generate duplicate reports failure", func(t *testing.T) {
		resp := performRequest(router, jsonRequest(http.MethodPost, "/timetables/generate",
			`{"group_id":"g1","month":9,"year":2026}`))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "already exists")
	})

	t.Run("generate invalid month", func(t *testing.T) {
		resp := performRequest(router, jsonRequest(http.MethodPost, "/timetables/generate",
			`{"group_id":"g1","month":13,"year":2026}`))
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	var timetableID string
	for id := range store.stored {
		timetableID = id
	}
	require.NotEmpty(t, timetableID)

	t.Run("lookup by period", func(t *testing.T) {
		resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/timetables?groupId=g1&month=9&year=2026", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"slots"`)
	})

	t.Run("lookup missing period", func(t *testing.T) {
		resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/timetables?groupId=g1&month=1&year=2026", nil))
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("score", func(t *testing.T) {
		resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/timetables/"+timetableID+"/score", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"combined_score"`)
	})

	t.Run("export csv", func(t *testing.T) {
		resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/timetables/"+timetableID+"/export?format=csv", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
		assert.Contains(t, resp.Header().Get("Content-Disposition"), "attachment")
	})

	t.Run("lock slot", func(t *testing.T) {
		slotID := store.stored[timetableID].Slots[0].ID
		resp := performRequest(router, jsonRequest(http.MethodPatch,
			"/timetables/"+timetableID+"/slots/"+slotID+"/lock", `{"locked":true}`))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.True(t, store.stored[timetableID].Slots[0].Locked)
	})

	t.Run("lock without flag", func(t *testing.T) {
		slotID := store.stored[timetableID].Slots[0].ID
		resp := performRequest(router, jsonRequest(http.MethodPatch,
			"/timetables/"+timetableID+"/slots/"+slotID+"/lock", `{}`))
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("manual assign conflict", func(t *testing.T) {
		// the first generated slot occupies Hall A on Monday 08:00-10:00
		resp := performRequest(router, jsonRequest(http.MethodPost,
			"/timetables/"+timetableID+"/assignments",
			`{"subject_id":"s2","venue_id":"v1","day_of_week":1,"start_time":"08:00","end_time":"10:00"}`))
		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Contains(t, resp.Body.String(), "CONFLICT")
	})

	t.Run("publish", func(t *testing.T) {
		resp := performRequest(router, jsonRequest(http.MethodPost, "/timetables/"+timetableID+"/publish", ""))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, models.TimetableStatusPublished, store.stored[timetableID].Status)
	})

	t.Run("publish twice conflicts", func(t *testing.T) {
		resp := performRequest(router, jsonRequest(http.MethodPost, "/timetables/"+timetableID+"/publish", ""))
		require.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("delete", func(t *testing.T) {
		resp := performRequest(router, httptest.NewRequest(http.MethodDelete, "/timetables/"+timetableID, nil))
		require.Equal(t, http.StatusNoContent, resp.Code)
		assert.Empty(t, store.stored)
	})
}
