package course

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"go.uber.org/zap"
)

var chapterFields = []string{"id", "module_id", "identifier", "order", "title", "duration", "page_count"}

// Tree is the session's copy of the course tree. Modules are fetched lazily
// and at most once per session.
type Tree struct {
	gw       models.Gateway
	course   *models.Course
	hydrated map[int64]struct{}
}

func NewTree(gw models.Gateway) *Tree {
	return &Tree{
		gw:       gw,
		hydrated: make(map[int64]struct{}),
	}
}

func (t *Tree) Course() *models.Course {
	return t.course
}

func (t *Tree) IsHydrated(moduleID int64) bool {
	_, ok := t.hydrated[moduleID]
	return ok
}

// LoadCourse fetches the course and orders its modules. The caller must treat
// an error as "course absent".
func (t *Tree) LoadCourse(ctx context.Context, courseID int64) (*models.Course, error) {
	var course models.Course
	if err := t.gw.Get(ctx, models.PathLearnCourse, map[string]any{"id": courseID}, &course); err != nil {
		return nil, fmt.Errorf("load course (course_id: %d): %w: %w", courseID, models.ErrResourceUnavailable, err)
	}

	course.Modules = dedupModules(course.Modules)
	if len(course.Modules) == 0 {
		return nil, fmt.Errorf("load course (course_id: %d): no modules: %w", courseID, models.ErrCourseNotFound)
	}
	sortModules(course.Modules)

	t.course = &course
	clear(t.hydrated)

	return t.course, nil
}

// HydrateModule replaces the module entry with its full version the first
// time it is requested in this session.
func (t *Tree) HydrateModule(ctx context.Context, moduleID int64) (*models.Course, error) {
	if t.course == nil {
		return nil, fmt.Errorf("hydrate module (module_id: %d): %w", moduleID, models.ErrCourseNotFound)
	}
	if t.IsHydrated(moduleID) {
		return t.course, nil
	}

	var module models.Module
	if err := t.gw.Get(ctx, models.PathLearnModule, map[string]any{"id": moduleID}, &module); err != nil {
		return t.course, fmt.Errorf("hydrate module (module_id: %d): %w: %w", moduleID, models.ErrResourceUnavailable, err)
	}
	sortChapters(module.Chapters)

	if i, ok := progression.ModuleIndex(t.course, module.ID); ok {
		t.course.Modules[i] = &module
	} else {
		zap.L().Warn("hydrated module is not part of the course, appending",
			zap.Int64("course_id", t.course.ID), zap.Int64("module_id", module.ID))
		t.course.Modules = append(t.course.Modules, &module)
	}
	sortModules(t.course.Modules)

	t.hydrated[moduleID] = struct{}{}

	return t.course, nil
}

// LoadChapter fetches one chapter and puts it into its module, replacing an
// existing chapter with the same id.
func (t *Tree) LoadChapter(ctx context.Context, moduleID, chapterID int64) error {
	module := t.module(moduleID)
	if module == nil {
		return fmt.Errorf("load chapter (module_id: %d, chapter_id: %d): module not loaded", moduleID, chapterID)
	}

	var chapters []*models.Chapter
	err := t.gw.Collect(ctx, models.CollectQuery{
		Entity: models.EntityChapter,
		Filters: []models.Filter{
			{Field: "module_id", Op: "=", Value: moduleID},
			{Field: "id", Op: "=", Value: chapterID},
		},
		Fields: chapterFields,
	}, &chapters)
	if err != nil {
		return fmt.Errorf("load chapter (module_id: %d, chapter_id: %d): %w: %w", moduleID, chapterID, models.ErrResourceUnavailable, err)
	}
	if len(chapters) == 0 {
		return fmt.Errorf("load chapter (module_id: %d, chapter_id: %d): empty result: %w", moduleID, chapterID, models.ErrResourceUnavailable)
	}

	chapter := chapters[0]
	if i, ok := progression.ChapterIndex(module, chapter.ID); ok {
		module.Chapters[i] = chapter
	} else {
		module.Chapters = append(module.Chapters, chapter)
	}
	sortChapters(module.Chapters)

	t.Invalidate(ctx, moduleID)

	return nil
}

// RemoveChapter drops the chapter from the local tree only; the content
// surface already deleted it upstream.
func (t *Tree) RemoveChapter(moduleID, chapterID int64) bool {
	module := t.module(moduleID)
	if module == nil {
		return false
	}

	before := len(module.Chapters)
	module.Chapters = slices.DeleteFunc(module.Chapters, func(c *models.Chapter) bool {
		return c.ID == chapterID
	})

	return len(module.Chapters) != before
}

// Invalidate drops the shared module document when the gateway caches them.
func (t *Tree) Invalidate(ctx context.Context, moduleID int64) {
	if inv, ok := t.gw.(models.Invalidator); ok {
		inv.Invalidate(ctx, models.PathLearnModule, map[string]any{"id": moduleID})
	}
}

func (t *Tree) module(moduleID int64) *models.Module {
	i, ok := progression.ModuleIndex(t.course, moduleID)
	if !ok {
		return nil
	}
	return t.course.Modules[i]
}

func dedupModules(modules []*models.Module) []*models.Module {
	seen := make(map[int64]struct{}, len(modules))
	out := modules[:0]
	for _, m := range modules {
		if m == nil {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			zap.L().Warn("duplicate module in course payload", zap.Int64("module_id", m.ID))
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sortModules(modules []*models.Module) {
	slices.SortStableFunc(modules, func(a, b *models.Module) int {
		return cmp.Compare(a.Order, b.Order)
	})
}

func sortChapters(chapters []*models.Chapter) {
	slices.SortStableFunc(chapters, func(a, b *models.Chapter) int {
		return cmp.Compare(a.Order, b.Order)
	})
}
