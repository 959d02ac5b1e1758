package models

import "context"

// Gateway paths and entities understood by every backend implementation.
const (
	PathUserInfo     = "userinfo"
	PathLearnCourse  = "?get=learn_course"
	PathLearnModule  = "?get=learn_module"
	EntityChapter    = "Chapter"
	EntityUserAccess = "UserAccess"
	EntityUserStatus = "UserStatus"
)

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Filter is a single [field, op, value] condition of a collect request.
type Filter struct {
	Field string
	Op    string
	Value any
}

type CollectQuery struct {
	Entity    string
	Filters   []Filter
	Fields    []string
	SortField string
	SortDir   SortDir
}

// Gateway is the only route to persisted data. Get and Collect decode into dest.
type Gateway interface {
	Get(ctx context.Context, path string, params map[string]any, dest any) error
	Collect(ctx context.Context, q CollectQuery, dest any) error
	Create(ctx context.Context, entity string, payload map[string]any) error
}

// Invalidator is implemented by gateways that cache Get documents.
type Invalidator interface {
	Invalidate(ctx context.Context, path string, params map[string]any)
}
