package navigation

import (
	"fmt"
	"time"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"github.com/romanzh1/course-player/pkg/utils"
	"go.uber.org/zap"
)

// Snapshot is an immutable view of a session, published after every command.
type Snapshot struct {
	SessionID      string             `json:"session_id"`
	UserID         int64              `json:"user_id"`
	CourseID       int64              `json:"course_id"`
	Title          string             `json:"title"`
	Mode           models.Mode        `json:"mode"`
	CanEdit        bool               `json:"can_edit"`
	Enrolled       bool               `json:"enrolled"`
	Index          progression.Index  `json:"index"`
	ModuleID       int64              `json:"module_id,omitempty"`
	ChapterID      int64              `json:"chapter_id,omitempty"`
	Pending        *progression.Index `json:"pending,omitempty"`
	Awaiting       *CompletionPrompt  `json:"awaiting_confirmation,omitempty"`
	CourseFinished bool               `json:"course_finished"`
	Progress       models.Progress    `json:"progress"`
	ProgressLabel  string             `json:"progress_label"`
	ModuleProgress string             `json:"module_progress"`
	LessonProgress string             `json:"lesson_progress"`
	ContentURL     string             `json:"content_url"`
	Reached        map[int64]int      `json:"reached"`
	Bridge         bridge.Stats       `json:"bridge"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		SessionID:      c.cfg.SessionID,
		UserID:         c.cfg.UserID,
		CourseID:       c.cfg.CourseID,
		Mode:           c.mode,
		CanEdit:        c.canEdit,
		Enrolled:       c.access != nil,
		Index:          c.index,
		CourseFinished: c.finished,
		Reached:        map[int64]int{},
		UpdatedAt:      utils.NowUTC(),
	}
	if c.pending != nil {
		p := *c.pending
		s.Pending = &p
	}
	if c.awaiting != nil {
		a := *c.awaiting
		s.Awaiting = &a
	}

	crs := c.tree.Course()
	if crs == nil {
		return s
	}
	s.Title = "Learning | " + crs.Title

	for _, m := range crs.Modules {
		s.Reached[m.ID] = c.store.ReachedChapter(crs, m.ID, c.mode)
	}

	module := progression.ModuleAt(crs, c.index.Module)
	if module == nil {
		return s
	}
	s.ModuleID = module.ID
	s.ModuleProgress = fmt.Sprintf("%d / %d - %s", c.store.CompletedModules(), len(crs.Modules), utils.FormatDuration(module.Duration))

	if chapter := progression.ChapterAt(module, c.index.Chapter); chapter != nil {
		s.ChapterID = chapter.ID
		s.LessonProgress = fmt.Sprintf("%d / %d - %s - %dp",
			c.index.Chapter+1, len(module.Chapters), utils.FormatDuration(chapter.Duration), chapter.PageCount)
	}

	s.Progress = c.store.PercentComplete(crs, c.index.Module, chapterOrder(module, c.index.Chapter))
	s.ProgressLabel = fmt.Sprintf("%d%% completed", s.Progress.Percent)

	contentURL, err := ContentURL(c.cfg.ContentBaseURL, module.ID, c.index, c.mode, c.canEdit)
	if err != nil {
		zap.L().Warn("build content url", zap.Error(err))
	}
	s.ContentURL = contentURL

	return s
}

// chapterOrder maps the cursor to the order used by the progress math. The
// "module just completed" position counts every chapter.
func chapterOrder(module *models.Module, i int) int {
	if ch := progression.ChapterAt(module, i); ch != nil {
		return ch.Order
	}
	if n := len(module.Chapters); n > 0 && i >= n {
		return module.Chapters[n-1].Order + 1
	}
	return 0
}
