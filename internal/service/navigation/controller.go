package navigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"github.com/romanzh1/course-player/internal/service/course"
	"github.com/romanzh1/course-player/internal/service/status"
	"go.uber.org/zap"
)

const adminGroup = "admins"

type Config struct {
	SessionID      string
	UserID         int64
	CourseID       int64
	ContentBaseURL string
}

// Controller is the navigation state machine of one player session. It is not
// safe for concurrent use; Session serializes every call.
type Controller struct {
	cfg      Config
	gw       models.Gateway
	tree     *course.Tree
	store    *status.Store
	prompter Prompter

	// onChange publishes state while a transition is still running.
	onChange func()

	user     models.UserInfo
	access   *models.UserAccess
	mode     models.Mode
	canEdit  bool
	index    progression.Index
	pending  *progression.Index
	awaiting *CompletionPrompt
	finished bool
}

func NewController(cfg Config, gw models.Gateway, prompter Prompter) *Controller {
	return &Controller{
		cfg:      cfg,
		gw:       gw,
		tree:     course.NewTree(gw),
		store:    status.NewStore(gw),
		prompter: prompter,
		user:     models.UserInfo{ID: cfg.UserID},
		mode:     models.ModeView,
	}
}

func (c *Controller) Index() progression.Index { return c.index }
func (c *Controller) Mode() models.Mode        { return c.mode }
func (c *Controller) Course() *models.Course   { return c.tree.Course() }

// Open loads everything a session needs and positions the cursor: resume
// point first, then the deep link on top of it. Only a course load failure is
// fatal.
func (c *Controller) Open(ctx context.Context, link DeepLink) error {
	log := zap.L().With(zap.Int64("user_id", c.cfg.UserID), zap.Int64("course_id", c.cfg.CourseID))

	if err := c.gw.Get(ctx, models.PathUserInfo, map[string]any{"id": c.cfg.UserID}, &c.user); err != nil {
		log.Warn("load user info", zap.Error(err))
		c.user = models.UserInfo{ID: c.cfg.UserID}
	}

	var accesses []models.UserAccess
	err := c.gw.Collect(ctx, models.CollectQuery{
		Entity: models.EntityUserAccess,
		Filters: []models.Filter{
			{Field: "user_id", Op: "=", Value: c.cfg.UserID},
			{Field: "course_id", Op: "=", Value: c.cfg.CourseID},
		},
		Fields: []string{"id", "user_id", "course_id", "is_complete"},
	}, &accesses)
	if err != nil {
		log.Warn("load user access", zap.Error(err))
	} else if len(accesses) > 0 {
		c.access = &accesses[0]
	}

	_, statusErr := c.store.Refresh(ctx, c.cfg.UserID, c.cfg.CourseID)
	if statusErr != nil {
		log.Warn("load user status", zap.Error(statusErr))
	}

	crs, err := c.tree.LoadCourse(ctx, c.cfg.CourseID)
	if err != nil {
		return fmt.Errorf("open session (course_id: %d): %w", c.cfg.CourseID, err)
	}

	c.canEdit = crs.Creator == c.user.ID || c.user.InGroup(adminGroup)
	if link.Mode == models.ModeEdit && c.canEdit {
		c.mode = models.ModeEdit
	}

	if c.mode == models.ModeView {
		c.index = c.store.ResumePoint(crs)
	}

	if link.Module != nil {
		moduleIdx, ok := progression.ModuleIndex(crs, *link.Module)
		if !ok {
			log.Warn("deep link module not in course", zap.Int64("module_id", *link.Module))
		}
		c.index = progression.Index{Module: moduleIdx}
		if link.Chapter != nil {
			c.index.Chapter = *link.Chapter
			if link.Page != nil {
				c.index.Page = *link.Page
			}
		}
	}

	c.index = progression.Clamp(crs, c.index, c.tree.IsHydrated)
	c.hydrateCurrent(ctx)

	// A learner gets a row on first entering a module. Without a readable
	// status list we cannot tell whether the row exists.
	if c.mode == models.ModeView && statusErr == nil {
		c.enterModule(ctx)
	}

	return nil
}

func (c *Controller) enterModule(ctx context.Context) {
	module := c.currentModule()
	if module == nil {
		return
	}

	created, err := c.store.EnsureStatus(ctx, c.cfg.UserID, c.cfg.CourseID, module.ID)
	if err != nil {
		zap.L().Warn("create status for entered module", zap.Error(err), zap.Int64("module_id", module.ID))
		return
	}
	if !created {
		return
	}
	if _, err := c.store.Refresh(ctx, c.cfg.UserID, c.cfg.CourseID); err != nil {
		zap.L().Warn("refresh user status after module entry", zap.Error(err))
	}
}

// Handle applies one content-surface event.
func (c *Controller) Handle(ctx context.Context, ev bridge.Event) {
	// Completion flags drive the progress math and may have changed upstream.
	if _, err := c.store.Refresh(ctx, c.cfg.UserID, c.cfg.CourseID); err != nil {
		zap.L().Warn("refresh user status before event", zap.Error(err), zap.String("type", string(ev.Kind())))
	}

	switch e := ev.(type) {
	case bridge.ChapterAdded:
		c.chapterAdded(ctx, e)
	case bridge.ChapterRemoved:
		c.chapterRemoved(ctx, e)
	case bridge.PageRemoved:
		c.pageRemoved(ctx, e)
	case bridge.LearnNext:
		c.learnNext(e)
	case bridge.ChapterProgressionFinished:
		c.chapterFinished(e)
	case bridge.ModuleProgressionFinished:
		c.moduleFinished(ctx, e)
	}

	c.index = progression.Clamp(c.tree.Course(), c.index, c.tree.IsHydrated)
}

// chapterAdded moves to the last chapter of the module, which is not the
// added one when it was ordered before existing chapters.
func (c *Controller) chapterAdded(ctx context.Context, e bridge.ChapterAdded) {
	if err := c.tree.LoadChapter(ctx, e.ModuleID, e.ChapterID); err != nil {
		zap.L().Warn("load added chapter", zap.Error(err))
		return
	}

	module := c.currentModule()
	if module == nil || module.ID != e.ModuleID {
		return
	}
	c.index.Chapter = max(len(module.Chapters)-1, 0)
	c.index.Page = 0
}

func (c *Controller) chapterRemoved(ctx context.Context, e bridge.ChapterRemoved) {
	if !c.tree.RemoveChapter(e.ModuleID, e.ChapterID) {
		zap.L().Debug("removed chapter not cached", zap.Int64("module_id", e.ModuleID), zap.Int64("chapter_id", e.ChapterID))
	}
	c.tree.Invalidate(ctx, e.ModuleID)

	if c.pending != nil {
		if m := progression.ModuleAt(c.tree.Course(), c.pending.Module); m != nil && m.ID == e.ModuleID {
			c.pending = nil
		}
	}

	module := c.currentModule()
	if module == nil || module.ID != e.ModuleID {
		return
	}
	c.index = progression.ClampRemoved(module, c.index)
}

func (c *Controller) pageRemoved(ctx context.Context, e bridge.PageRemoved) {
	if err := c.tree.LoadChapter(ctx, e.ModuleID, e.ChapterID); err != nil {
		zap.L().Warn("reload chapter after page removal", zap.Error(err))
	}
}

func (c *Controller) learnNext(e bridge.LearnNext) {
	if e.ChapterIndex != c.index.Chapter {
		c.index.Chapter = e.ChapterIndex
		c.index.Page = 0
	}
}

// chapterFinished only advances inside the module; finishing the module is
// announced by its own event.
func (c *Controller) chapterFinished(e bridge.ChapterProgressionFinished) {
	if progression.ChapterAt(c.currentModule(), e.ChapterIndex+1) == nil {
		return
	}
	c.index.Chapter = e.ChapterIndex + 1
	c.index.Page = 0
}

func (c *Controller) moduleFinished(ctx context.Context, e bridge.ModuleProgressionFinished) {
	log := zap.L().With(zap.Int64("user_id", c.cfg.UserID), zap.Int64("module_id", e.ModuleID))

	crs := c.tree.Course()
	finishedIdx, ok := progression.ModuleIndex(crs, e.ModuleID)
	if !ok {
		log.Warn("finished module not in course")
		return
	}
	c.store.MarkModuleComplete(e.ModuleID)

	next := progression.ModuleAt(crs, finishedIdx+1)
	if next == nil {
		c.finished = true
		log.Info("course finished")
		return
	}
	nextID := next.ID

	if _, err := c.tree.HydrateModule(ctx, nextID); err != nil {
		log.Warn("hydrate next module", zap.Error(err))
	}
	nextIdx, ok := progression.ModuleIndex(c.tree.Course(), nextID)
	if !ok {
		return
	}
	next = c.tree.Course().Modules[nextIdx]

	prompt := CompletionPrompt{
		SessionID:        c.cfg.SessionID,
		UserID:           c.cfg.UserID,
		CourseID:         c.cfg.CourseID,
		CourseTitle:      crs.Title,
		FinishedModuleID: e.ModuleID,
		NextModuleID:     next.ID,
		NextModuleTitle:  next.Title,
	}
	c.awaiting = &prompt

	accepted, err := c.prompter.ConfirmModuleCompletion(ctx, prompt, c.changed)
	c.awaiting = nil
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Warn("module completion prompt", zap.Error(err))
		}
		return
	}
	if !accepted {
		log.Info("module completion dismissed")
		return
	}

	if _, err := c.store.EnsureStatus(ctx, c.cfg.UserID, c.cfg.CourseID, next.ID); err != nil {
		log.Warn("create status for next module", zap.Error(err))
	}
	if _, err := c.store.Refresh(ctx, c.cfg.UserID, c.cfg.CourseID); err != nil {
		log.Warn("refresh user status after module transition", zap.Error(err))
	}

	c.index = progression.Index{Module: nextIdx}
	c.pending = nil
}

// Navigate handles a chapter click. Authors jump immediately; learners get a
// pending target that CommitNavigation applies.
func (c *Controller) Navigate(ctx context.Context, moduleID, chapterID int64) error {
	if _, err := c.tree.HydrateModule(ctx, moduleID); err != nil {
		zap.L().Warn("hydrate clicked module", zap.Error(err))
	}

	crs := c.tree.Course()
	moduleIdx, ok := progression.ModuleIndex(crs, moduleID)
	if !ok {
		return fmt.Errorf("navigate (module_id: %d): %w", moduleID, models.ErrUnknownTarget)
	}
	chapterIdx, ok := progression.ChapterIndex(crs.Modules[moduleIdx], chapterID)
	if !ok {
		return fmt.Errorf("navigate (module_id: %d, chapter_id: %d): %w", moduleID, chapterID, models.ErrUnknownTarget)
	}

	target := progression.Index{Module: moduleIdx, Chapter: chapterIdx}

	if c.mode == models.ModeEdit {
		c.index = target
		c.pending = nil
		return nil
	}

	if target.Module == c.index.Module && target.Chapter == c.index.Chapter {
		c.pending = nil
	} else {
		c.pending = &target
	}

	return nil
}

// CommitNavigation makes the pending target current.
func (c *Controller) CommitNavigation(ctx context.Context) bool {
	if c.pending == nil {
		return false
	}

	c.index = *c.pending
	c.pending = nil
	c.hydrateCurrent(ctx)
	c.index = progression.Clamp(c.tree.Course(), c.index, c.tree.IsHydrated)

	return true
}

func (c *Controller) hydrateCurrent(ctx context.Context) {
	module := c.currentModule()
	if module == nil {
		return
	}
	if _, err := c.tree.HydrateModule(ctx, module.ID); err != nil {
		zap.L().Warn("hydrate current module", zap.Error(err))
	}
	c.index = progression.Clamp(c.tree.Course(), c.index, c.tree.IsHydrated)
}

func (c *Controller) currentModule() *models.Module {
	return progression.ModuleAt(c.tree.Course(), c.index.Module)
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
