package models

type Mode string

const (
	ModeView Mode = "view"
	ModeEdit Mode = "edit"
)

type Course struct {
	ID      int64     `json:"id" db:"id"`
	Title   string    `json:"title" db:"title"`
	Creator int64     `json:"creator" db:"creator"`
	Modules []*Module `json:"modules" db:"-"`
}

type Module struct {
	ID       int64      `json:"id" db:"id"`
	CourseID int64      `json:"course_id,omitempty" db:"course_id"`
	Order    int        `json:"order" db:"order"`
	Title    string     `json:"title" db:"title"`
	Duration int        `json:"duration" db:"duration"`
	Chapters []*Chapter `json:"chapters" db:"-"`
}

type Chapter struct {
	ID         int64  `json:"id" db:"id"`
	ModuleID   int64  `json:"module_id,omitempty" db:"module_id"`
	Identifier int64  `json:"identifier,omitempty" db:"identifier"`
	Order      int    `json:"order" db:"order"`
	Title      string `json:"title" db:"title"`
	Duration   int    `json:"duration" db:"duration"`
	PageCount  int    `json:"page_count" db:"page_count"`
}

// UserStatus is the persisted position of a user inside one module of a course.
type UserStatus struct {
	ID           int64 `json:"id" db:"id"`
	UserID       int64 `json:"user_id" db:"user_id"`
	CourseID     int64 `json:"course_id" db:"course_id"`
	ModuleID     int64 `json:"module_id" db:"module_id"`
	ChapterIndex int   `json:"chapter_index" db:"chapter_index"`
	PageIndex    int   `json:"page_index" db:"page_index"`
	IsComplete   bool  `json:"is_complete" db:"is_complete"`
}

type UserAccess struct {
	ID         int64 `json:"id" db:"id"`
	UserID     int64 `json:"user_id" db:"user_id"`
	CourseID   int64 `json:"course_id" db:"course_id"`
	IsComplete bool  `json:"is_complete" db:"is_complete"`
}

type UserInfo struct {
	ID     int64    `json:"id" db:"id"`
	Name   string   `json:"name" db:"name"`
	Login  string   `json:"login" db:"login"`
	Groups []string `json:"groups" db:"-"`
}

func (u *UserInfo) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// ProgressionIndex holds array positions into the loaded course tree, not ids.
type ProgressionIndex struct {
	Module  int `json:"module"`
	Chapter int `json:"chapter"`
	Page    int `json:"page"`
}

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}
