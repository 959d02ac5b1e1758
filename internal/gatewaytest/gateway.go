// Package gatewaytest provides an in-memory models.Gateway for tests.
package gatewaytest

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/romanzh1/course-player/internal/models"
)

var ErrInjected = errors.New("injected gateway failure")

// Gateway serves a fixed set of courses. The learn_course document carries
// modules without chapters so that hydration is observable.
type Gateway struct {
	mu sync.Mutex

	Courses  map[int64]*models.Course
	Users    map[int64]*models.UserInfo
	Statuses []models.UserStatus
	Accesses []models.UserAccess

	// Fail makes every call to the named path or entity return ErrInjected.
	Fail map[string]bool

	calls   map[string]int
	created []map[string]any
	nextID  int64
}

func New() *Gateway {
	return &Gateway{
		Courses: make(map[int64]*models.Course),
		Users:   make(map[int64]*models.UserInfo),
		Fail:    make(map[string]bool),
		calls:   make(map[string]int),
		nextID:  1000,
	}
}

func (g *Gateway) Calls(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func (g *Gateway) Created() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.created)
}

func (g *Gateway) SetFail(key string, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Fail[key] = fail
}

func (g *Gateway) Get(ctx context.Context, path string, params map[string]any, dest any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls[path]++
	if g.Fail[path] {
		return ErrInjected
	}

	id, _ := toInt64(params["id"])

	switch path {
	case models.PathUserInfo:
		user, ok := g.Users[id]
		if !ok {
			return fmt.Errorf("user %d not found", id)
		}
		return assign(user, dest)
	case models.PathLearnCourse:
		course, ok := g.Courses[id]
		if !ok {
			return fmt.Errorf("course %d not found", id)
		}
		shallow := &models.Course{ID: course.ID, Title: course.Title, Creator: course.Creator}
		for _, m := range course.Modules {
			shallow.Modules = append(shallow.Modules, &models.Module{
				ID: m.ID, CourseID: course.ID, Order: m.Order, Title: m.Title, Duration: m.Duration,
			})
		}
		return assign(shallow, dest)
	case models.PathLearnModule:
		module := g.findModule(id)
		if module == nil {
			return fmt.Errorf("module %d not found", id)
		}
		return assign(module, dest)
	}

	return fmt.Errorf("unknown path %q", path)
}

func (g *Gateway) Collect(ctx context.Context, q models.CollectQuery, dest any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls[q.Entity]++
	if g.Fail[q.Entity] {
		return ErrInjected
	}

	switch q.Entity {
	case models.EntityChapter:
		moduleID, _ := filterValue(q.Filters, "module_id")
		chapterID, byID := filterValue(q.Filters, "id")
		module := g.findModule(moduleID)
		var out []*models.Chapter
		if module != nil {
			for _, c := range module.Chapters {
				if !byID || c.ID == chapterID {
					out = append(out, c)
				}
			}
		}
		return assign(out, dest)
	case models.EntityUserStatus:
		userID, _ := filterValue(q.Filters, "user_id")
		courseID, _ := filterValue(q.Filters, "course_id")
		out := []models.UserStatus{}
		for _, s := range g.Statuses {
			if s.UserID == userID && s.CourseID == courseID {
				out = append(out, s)
			}
		}
		if q.SortField == "module_id" {
			slices.SortFunc(out, func(a, b models.UserStatus) int {
				if q.SortDir == models.SortDesc {
					return cmp.Compare(b.ModuleID, a.ModuleID)
				}
				return cmp.Compare(a.ModuleID, b.ModuleID)
			})
		}
		return assign(out, dest)
	case models.EntityUserAccess:
		userID, _ := filterValue(q.Filters, "user_id")
		courseID, _ := filterValue(q.Filters, "course_id")
		out := []models.UserAccess{}
		for _, a := range g.Accesses {
			if a.UserID == userID && a.CourseID == courseID {
				out = append(out, a)
			}
		}
		return assign(out, dest)
	}

	return fmt.Errorf("unknown entity %q", q.Entity)
}

func (g *Gateway) Create(ctx context.Context, entity string, payload map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls["create:"+entity]++
	if g.Fail["create:"+entity] {
		return ErrInjected
	}

	g.created = append(g.created, payload)

	if entity == models.EntityUserStatus {
		g.nextID++
		userID, _ := toInt64(payload["user_id"])
		courseID, _ := toInt64(payload["course_id"])
		moduleID, _ := toInt64(payload["module_id"])
		g.Statuses = append(g.Statuses, models.UserStatus{
			ID: g.nextID, UserID: userID, CourseID: courseID, ModuleID: moduleID,
		})
	}

	return nil
}

// AddChapter mutates the backing store the way an author would.
func (g *Gateway) AddChapter(moduleID int64, chapter *models.Chapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m := g.findModule(moduleID); m != nil {
		m.Chapters = append(m.Chapters, chapter)
	}
}

func (g *Gateway) findModule(id int64) *models.Module {
	for _, c := range g.Courses {
		for _, m := range c.Modules {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

func filterValue(filters []models.Filter, field string) (int64, bool) {
	for _, f := range filters {
		if f.Field == field && f.Op == "=" {
			return toInt64(f.Value)
		}
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// assign copies src into dest through JSON, like a remote gateway would.
func assign(src, dest any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// TwoModuleCourse is the reference course used across tests: module A (id 10)
// with chapters ordered 0 and 1 lasting 10 and 20 minutes, and module B (id 20)
// with one 30 minute chapter. Modules are stored out of order on purpose.
func TwoModuleCourse() *models.Course {
	return &models.Course{
		ID:      1,
		Title:   "Go basics",
		Creator: 7,
		Modules: []*models.Module{
			{ID: 20, CourseID: 1, Order: 1, Title: "B", Duration: 30, Chapters: []*models.Chapter{
				{ID: 200, ModuleID: 20, Order: 0, Title: "B1", Duration: 30, PageCount: 2},
			}},
			{ID: 10, CourseID: 1, Order: 0, Title: "A", Duration: 30, Chapters: []*models.Chapter{
				{ID: 100, ModuleID: 10, Order: 0, Title: "A1", Duration: 10, PageCount: 3},
				{ID: 101, ModuleID: 10, Order: 1, Title: "A2", Duration: 20, PageCount: 4},
			}},
		},
	}
}
