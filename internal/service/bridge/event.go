package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/romanzh1/course-player/internal/models"
)

// Kind is the message type as the content surface sends it.
type Kind string

const (
	KindChapterAdded               Kind = "qu_chapter_added"
	KindChapterRemoved             Kind = "qu_chapter_removed"
	KindPageRemoved                Kind = "qu_page_removed"
	KindLearnNext                  Kind = "eq_action_learn_next"
	KindChapterProgressionFinished Kind = "qu_chapter_progression_finished"
	KindModuleProgressionFinished  Kind = "qu_module_progression_finished"
)

var kinds = map[string]Kind{
	string(KindChapterAdded):               KindChapterAdded,
	string(KindChapterRemoved):             KindChapterRemoved,
	string(KindPageRemoved):                KindPageRemoved,
	string(KindLearnNext):                  KindLearnNext,
	string(KindChapterProgressionFinished): KindChapterProgressionFinished,
	string(KindModuleProgressionFinished):  KindModuleProgressionFinished,

	"chapter-added":                KindChapterAdded,
	"chapter-removed":              KindChapterRemoved,
	"page-removed":                 KindPageRemoved,
	"learn-next":                   KindLearnNext,
	"chapter-progression-finished": KindChapterProgressionFinished,
	"module-progression-finished":  KindModuleProgressionFinished,
}

// Event is one of the types below. The set is closed: only this package can
// add members.
type Event interface {
	Kind() Kind
	sealed()
}

type ChapterAdded struct {
	ModuleID  int64
	ChapterID int64
}

type ChapterRemoved struct {
	ModuleID  int64
	ChapterID int64
}

type PageRemoved struct {
	ModuleID  int64
	ChapterID int64
}

type LearnNext struct {
	ModuleID     int64
	ChapterIndex int
}

type ChapterProgressionFinished struct {
	ModuleID     int64
	ChapterIndex int
}

type ModuleProgressionFinished struct {
	ModuleID int64
}

func (ChapterAdded) Kind() Kind               { return KindChapterAdded }
func (ChapterRemoved) Kind() Kind             { return KindChapterRemoved }
func (PageRemoved) Kind() Kind                { return KindPageRemoved }
func (LearnNext) Kind() Kind                  { return KindLearnNext }
func (ChapterProgressionFinished) Kind() Kind { return KindChapterProgressionFinished }
func (ModuleProgressionFinished) Kind() Kind  { return KindModuleProgressionFinished }

func (ChapterAdded) sealed()               {}
func (ChapterRemoved) sealed()             {}
func (PageRemoved) sealed()                {}
func (LearnNext) sealed()                  {}
func (ChapterProgressionFinished) sealed() {}
func (ModuleProgressionFinished) sealed()  {}

type envelope struct {
	Type string   `json:"type"`
	Data *payload `json:"data"`
}

type payload struct {
	ModuleID     *int64 `json:"module_id"`
	ChapterID    *int64 `json:"chapter_id"`
	ChapterIndex *int   `json:"chapter_index"`
	PageIndex    *int   `json:"page_index"`
}

// Parse decodes a content-surface message. Any shape problem is reported as
// models.ErrMalformedEvent.
func Parse(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w: %w", models.ErrMalformedEvent, err)
	}

	kind, ok := kinds[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type (type: %q): %w", env.Type, models.ErrMalformedEvent)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("message without data (type: %s): %w", kind, models.ErrMalformedEvent)
	}
	d := env.Data

	switch kind {
	case KindChapterAdded, KindChapterRemoved, KindPageRemoved:
		if d.ModuleID == nil || d.ChapterID == nil {
			return nil, fmt.Errorf("missing module_id or chapter_id (type: %s): %w", kind, models.ErrMalformedEvent)
		}
		switch kind {
		case KindChapterAdded:
			return ChapterAdded{ModuleID: *d.ModuleID, ChapterID: *d.ChapterID}, nil
		case KindChapterRemoved:
			return ChapterRemoved{ModuleID: *d.ModuleID, ChapterID: *d.ChapterID}, nil
		default:
			return PageRemoved{ModuleID: *d.ModuleID, ChapterID: *d.ChapterID}, nil
		}
	case KindLearnNext, KindChapterProgressionFinished:
		if d.ChapterIndex == nil || *d.ChapterIndex < 0 {
			return nil, fmt.Errorf("missing or negative chapter_index (type: %s): %w", kind, models.ErrMalformedEvent)
		}
		var moduleID int64
		if d.ModuleID != nil {
			moduleID = *d.ModuleID
		}
		if kind == KindLearnNext {
			return LearnNext{ModuleID: moduleID, ChapterIndex: *d.ChapterIndex}, nil
		}
		return ChapterProgressionFinished{ModuleID: moduleID, ChapterIndex: *d.ChapterIndex}, nil
	case KindModuleProgressionFinished:
		if d.ModuleID == nil {
			return nil, fmt.Errorf("missing module_id (type: %s): %w", kind, models.ErrMalformedEvent)
		}
		return ModuleProgressionFinished{ModuleID: *d.ModuleID}, nil
	}

	return nil, fmt.Errorf("unhandled message type (type: %s): %w", kind, models.ErrMalformedEvent)
}
