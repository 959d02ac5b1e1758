// Package progression holds the (module, chapter, page) cursor rules shared by
// the course cache and the navigation controller.
//
// Indices are positions in the currently loaded course tree. Events and deep
// links carry ids, so every id → position translation goes through ModuleIndex
// and ChapterIndex.
package progression

import "github.com/romanzh1/course-player/internal/models"

type Index = models.ProgressionIndex

func ModuleIndex(course *models.Course, moduleID int64) (int, bool) {
	if course == nil {
		return 0, false
	}
	for i, m := range course.Modules {
		if m.ID == moduleID {
			return i, true
		}
	}
	return 0, false
}

func ChapterIndex(module *models.Module, chapterID int64) (int, bool) {
	if module == nil {
		return 0, false
	}
	for i, c := range module.Chapters {
		if c.ID == chapterID {
			return i, true
		}
	}
	return 0, false
}

// ModuleAt returns nil when i is outside the module list.
func ModuleAt(course *models.Course, i int) *models.Module {
	if course == nil || i < 0 || i >= len(course.Modules) {
		return nil
	}
	return course.Modules[i]
}

func ChapterAt(module *models.Module, i int) *models.Chapter {
	if module == nil || i < 0 || i >= len(module.Chapters) {
		return nil
	}
	return module.Chapters[i]
}

// Clamp pulls idx back inside the course bounds. The chapter upper bound is
// only enforced for hydrated modules; len(chapters) is kept as the
// "module completed" position. A nil hydrated func treats every module as hydrated.
func Clamp(course *models.Course, idx Index, hydrated func(moduleID int64) bool) Index {
	if course == nil || len(course.Modules) == 0 {
		return Index{}
	}

	out := Index{
		Module:  clampInt(idx.Module, 0, len(course.Modules)-1),
		Chapter: max(idx.Chapter, 0),
		Page:    max(idx.Page, 0),
	}

	module := course.Modules[out.Module]
	if hydrated == nil || hydrated(module.ID) {
		out.Chapter = min(out.Chapter, len(module.Chapters))
	}

	return out
}

// ClampRemoved applies the post-removal rule: a chapter past the last one
// falls back to the last chapter, or to 0 when the module is now empty.
func ClampRemoved(module *models.Module, idx Index) Index {
	if module == nil {
		return idx
	}
	last := max(len(module.Chapters)-1, 0)
	if idx.Chapter > last {
		idx.Chapter = last
	}
	return idx
}

// Valid reports whether idx points inside course.
func Valid(course *models.Course, idx Index, hydrated func(moduleID int64) bool) bool {
	if course == nil || idx.Module < 0 || idx.Module >= len(course.Modules) {
		return false
	}
	if idx.Chapter < 0 || idx.Page < 0 {
		return false
	}
	module := course.Modules[idx.Module]
	if hydrated == nil || hydrated(module.ID) {
		return idx.Chapter <= len(module.Chapters)
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
