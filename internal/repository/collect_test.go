package repository

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/romanzh1/course-player/internal/models"
)

func TestBuildCollect(t *testing.T) {
	tests := []struct {
		name     string
		q        models.CollectQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "single chapter",
			q: models.CollectQuery{
				Entity:  models.EntityChapter,
				Filters: []models.Filter{{Field: "module_id", Op: "=", Value: 10}, {Field: "id", Op: "=", Value: 101}},
				Fields:  []string{"id", "order", "page_count"},
			},
			wantSQL:  `SELECT "id", "order", "page_count" FROM chapters WHERE "module_id" = $1 AND "id" = $2 ORDER BY "id" ASC`,
			wantArgs: []any{10, 101},
		},
		{
			name: "statuses newest first",
			q: models.CollectQuery{
				Entity:    models.EntityUserStatus,
				Filters:   []models.Filter{{Field: "user_id", Op: "=", Value: 5}, {Field: "course_id", Op: "=", Value: 1}},
				Fields:    []string{"module_id", "is_complete"},
				SortField: "module_id",
				SortDir:   models.SortDesc,
			},
			wantSQL:  `SELECT "module_id", "is_complete" FROM user_statuses WHERE "user_id" = $1 AND "course_id" = $2 ORDER BY "module_id" DESC`,
			wantArgs: []any{5, 1},
		},
		{
			name: "operators",
			q: models.CollectQuery{
				Entity: models.EntityUserAccess,
				Filters: []models.Filter{
					{Field: "course_id", Op: "in", Value: []int64{1, 2}},
					{Field: "user_id", Op: ">=", Value: 3},
					{Field: "is_complete", Op: "<>", Value: true},
				},
				Fields: []string{"id"},
			},
			wantSQL:  `SELECT "id" FROM user_accesses WHERE "course_id" IN ($1,$2) AND "user_id" >= $3 AND "is_complete" <> $4 ORDER BY "id" ASC`,
			wantArgs: []any{int64(1), int64(2), 3, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := buildCollect(newBuilder(), tt.q)
			if err != nil {
				t.Fatalf("buildCollect: %v", err)
			}
			if gotSQL != tt.wantSQL {
				t.Fatalf("sql:\nwant=%s\ngot= %s", tt.wantSQL, gotSQL)
			}
			if diff := cmp.Diff(tt.wantArgs, gotArgs); diff != "" {
				t.Fatalf("args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildCollectRejectsUnknownNames(t *testing.T) {
	queries := []models.CollectQuery{
		{Entity: "Course"},
		{Entity: models.EntityChapter, Fields: []string{"id; DROP TABLE chapters"}},
		{Entity: models.EntityChapter, Filters: []models.Filter{{Field: "secret", Op: "=", Value: 1}}},
		{Entity: models.EntityChapter, SortField: "nope"},
	}
	for _, q := range queries {
		if _, _, err := buildCollect(newBuilder(), q); !errors.Is(err, ErrUnknownEntity) {
			t.Fatalf("buildCollect(%+v): want ErrUnknownEntity got=%v", q, err)
		}
	}

	_, _, err := buildCollect(newBuilder(), models.CollectQuery{
		Entity:  models.EntityChapter,
		Filters: []models.Filter{{Field: "id", Op: "between", Value: 1}},
	})
	if err == nil {
		t.Fatalf("unsupported operator must fail")
	}
}

func TestBuildInsertStatus(t *testing.T) {
	gotSQL, gotArgs, err := buildInsert(newBuilder(), models.EntityUserStatus, map[string]any{
		"user_id":   int64(5),
		"course_id": int64(1),
		"module_id": int64(20),
	})
	if err != nil {
		t.Fatalf("buildInsert: %v", err)
	}

	wantSQL := `INSERT INTO user_statuses ("course_id","module_id","user_id") VALUES ($1,$2,$3) ON CONFLICT (user_id, course_id, module_id) DO NOTHING`
	if gotSQL != wantSQL {
		t.Fatalf("sql:\nwant=%s\ngot= %s", wantSQL, gotSQL)
	}
	if diff := cmp.Diff([]any{int64(1), int64(20), int64(5)}, gotArgs); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}

	if _, _, err := buildInsert(newBuilder(), models.EntityUserStatus, map[string]any{"owner": 1}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("unknown column: want ErrUnknownEntity got=%v", err)
	}
}

func TestParamID(t *testing.T) {
	for _, v := range []any{int64(7), 7, float64(7), "7"} {
		id, err := paramID(map[string]any{"id": v})
		if err != nil || id != 7 {
			t.Fatalf("paramID(%v): want=7 got=%d err=%v", v, id, err)
		}
	}
	if _, err := paramID(map[string]any{}); err == nil {
		t.Fatalf("missing id must fail")
	}
}

func TestAssign(t *testing.T) {
	var course models.Course
	if err := assign(&course, &models.Course{ID: 1, Title: "Go"}); err != nil || course.Title != "Go" {
		t.Fatalf("assign: course=%+v err=%v", course, err)
	}

	var module models.Module
	if err := assign(&module, &models.Course{ID: 1}); err == nil {
		t.Fatalf("mismatched destination must fail")
	}
}
