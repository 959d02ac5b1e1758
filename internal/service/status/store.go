package status

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"go.uber.org/zap"
)

var statusFields = []string{"id", "user_id", "course_id", "module_id", "chapter_index", "page_index", "is_complete"}

// Store keeps the user's status rows, newest module first.
type Store struct {
	gw       models.Gateway
	statuses []models.UserStatus

	// completed survives Refresh until the backend reports the flag itself.
	completed map[int64]struct{}
}

func NewStore(gw models.Gateway) *Store {
	return &Store{gw: gw, completed: make(map[int64]struct{})}
}

func (s *Store) Statuses() []models.UserStatus {
	return slices.Clone(s.statuses)
}

// Refresh replaces the rows with the backend's view. On failure the previous
// rows are kept.
func (s *Store) Refresh(ctx context.Context, userID, courseID int64) ([]models.UserStatus, error) {
	var rows []models.UserStatus
	err := s.gw.Collect(ctx, models.CollectQuery{
		Entity: models.EntityUserStatus,
		Filters: []models.Filter{
			{Field: "user_id", Op: "=", Value: userID},
			{Field: "course_id", Op: "=", Value: courseID},
		},
		Fields:    statusFields,
		SortField: "module_id",
		SortDir:   models.SortDesc,
	}, &rows)
	if err != nil {
		return s.Statuses(), fmt.Errorf("refresh user status (user_id: %d, course_id: %d): %w: %w", userID, courseID, models.ErrResourceUnavailable, err)
	}

	// Rows are created in increasing module order, so the highest module id
	// is the most recently entered module.
	slices.SortStableFunc(rows, func(a, b models.UserStatus) int {
		return cmp.Compare(b.ModuleID, a.ModuleID)
	})
	for i := range rows {
		if _, ok := s.completed[rows[i].ModuleID]; ok {
			rows[i].IsComplete = true
		}
	}
	s.statuses = rows

	return s.Statuses(), nil
}

func (s *Store) Latest() (models.UserStatus, bool) {
	if len(s.statuses) == 0 {
		return models.UserStatus{}, false
	}
	return s.statuses[0], true
}

func (s *Store) ForModule(moduleID int64) (models.UserStatus, bool) {
	for _, st := range s.statuses {
		if st.ModuleID == moduleID {
			return st, true
		}
	}
	return models.UserStatus{}, false
}

// IsComplete also honors local flags for modules that have no row yet.
func (s *Store) IsComplete(moduleID int64) bool {
	if _, ok := s.completed[moduleID]; ok {
		return true
	}
	st, ok := s.ForModule(moduleID)
	return ok && st.IsComplete
}

// ResumePoint resolves the latest row to an index. A learner without rows, or
// whose latest module is not in the course, starts at the beginning.
func (s *Store) ResumePoint(course *models.Course) progression.Index {
	latest, ok := s.Latest()
	if !ok {
		return progression.Index{}
	}

	moduleIdx, ok := progression.ModuleIndex(course, latest.ModuleID)
	if !ok {
		zap.L().Warn("resume module not found in course, starting from the beginning",
			zap.Int64("module_id", latest.ModuleID))
		return progression.Index{}
	}

	return progression.Index{
		Module:  moduleIdx,
		Chapter: max(latest.ChapterIndex, 0),
		Page:    max(latest.PageIndex, 0),
	}
}

// MarkModuleComplete flags the row locally; persisting is up to the caller.
func (s *Store) MarkModuleComplete(moduleID int64) bool {
	s.completed[moduleID] = struct{}{}
	for i := range s.statuses {
		if s.statuses[i].ModuleID == moduleID {
			s.statuses[i].IsComplete = true
			return true
		}
	}
	return false
}

// EnsureStatus creates the row for a module the user is about to enter.
func (s *Store) EnsureStatus(ctx context.Context, userID, courseID, moduleID int64) (bool, error) {
	if _, ok := s.ForModule(moduleID); ok {
		return false, nil
	}

	err := s.gw.Create(ctx, models.EntityUserStatus, map[string]any{
		"user_id":       userID,
		"course_id":     courseID,
		"module_id":     moduleID,
		"chapter_index": 0,
		"page_index":    0,
		"is_complete":   false,
	})
	if err != nil {
		return false, fmt.Errorf("create user status (user_id: %d, module_id: %d): %w: %w", userID, moduleID, models.ErrResourceUnavailable, err)
	}

	return true, nil
}

// CompletedModules counts every module entered before the latest one, plus
// the latest once it is complete.
func (s *Store) CompletedModules() int {
	latest, ok := s.Latest()
	if !ok {
		return 0
	}
	n := len(s.statuses) - 1
	if s.IsComplete(latest.ModuleID) {
		n++
	}
	return n
}

// ReachedChapter is how far the user got in a module: the full chapter count
// once complete, the stored chapter otherwise. Authors always start at 0.
func (s *Store) ReachedChapter(course *models.Course, moduleID int64, mode models.Mode) int {
	if mode == models.ModeEdit {
		return 0
	}

	if s.IsComplete(moduleID) {
		if i, found := progression.ModuleIndex(course, moduleID); found {
			return len(course.Modules[i].Chapters)
		}
	}
	st, ok := s.ForModule(moduleID)
	if !ok {
		return 0
	}
	return st.ChapterIndex
}
