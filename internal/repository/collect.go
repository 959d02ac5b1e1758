package repository

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/course-player/internal/models"
)

var ErrUnknownEntity = errors.New("unknown entity")

type entity struct {
	table    string
	fields   []string
	conflict string
}

var entities = map[string]entity{
	models.EntityChapter: {
		table:  "chapters",
		fields: []string{"id", "module_id", "identifier", "order", "title", "duration", "page_count"},
	},
	models.EntityUserStatus: {
		table:    "user_statuses",
		fields:   []string{"id", "user_id", "course_id", "module_id", "chapter_index", "page_index", "is_complete"},
		conflict: "(user_id, course_id, module_id)",
	},
	models.EntityUserAccess: {
		table:    "user_accesses",
		fields:   []string{"id", "user_id", "course_id", "is_complete"},
		conflict: "(user_id, course_id)",
	},
}

// column quotes a whitelisted field; "order" is a keyword.
func (e entity) column(field string) (string, error) {
	if !slices.Contains(e.fields, field) {
		return "", fmt.Errorf("field %q of %s: %w", field, e.table, ErrUnknownEntity)
	}
	return `"` + field + `"`, nil
}

func lookupEntity(name string) (entity, error) {
	e, ok := entities[name]
	if !ok {
		return entity{}, fmt.Errorf("entity %q: %w", name, ErrUnknownEntity)
	}
	return e, nil
}

func buildCollect(psql squirrel.StatementBuilderType, q models.CollectQuery) (string, []any, error) {
	e, err := lookupEntity(q.Entity)
	if err != nil {
		return "", nil, err
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = e.fields
	}
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := e.column(f)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, col)
	}

	query := psql.Select(columns...).From(e.table)

	for _, f := range q.Filters {
		col, err := e.column(f.Field)
		if err != nil {
			return "", nil, err
		}
		pred, err := predicate(col, f.Op, f.Value)
		if err != nil {
			return "", nil, err
		}
		query = query.Where(pred)
	}

	sortCol := `"id"`
	if q.SortField != "" {
		if sortCol, err = e.column(q.SortField); err != nil {
			return "", nil, err
		}
	}
	dir := "ASC"
	if q.SortDir == models.SortDesc {
		dir = "DESC"
	}
	query = query.OrderBy(sortCol + " " + dir)

	return query.ToSql()
}

func predicate(col, op string, value any) (squirrel.Sqlizer, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "=", "in":
		return squirrel.Eq{col: value}, nil
	case "<>", "!=", "not in":
		return squirrel.NotEq{col: value}, nil
	case "<":
		return squirrel.Lt{col: value}, nil
	case ">":
		return squirrel.Gt{col: value}, nil
	case "<=":
		return squirrel.LtOrEq{col: value}, nil
	case ">=":
		return squirrel.GtOrEq{col: value}, nil
	case "like":
		return squirrel.Like{col: value}, nil
	case "ilike":
		return squirrel.ILike{col: value}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q for %s", op, col)
}

// buildInsert ignores rows that already exist for the entity's natural key.
func buildInsert(psql squirrel.StatementBuilderType, name string, payload map[string]any) (string, []any, error) {
	e, err := lookupEntity(name)
	if err != nil {
		return "", nil, err
	}
	if len(payload) == 0 {
		return "", nil, fmt.Errorf("empty payload for %s", e.table)
	}

	fields := make([]string, 0, len(payload))
	for f := range payload {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	columns := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields))
	for _, f := range fields {
		col, err := e.column(f)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, col)
		values = append(values, payload[f])
	}

	query := psql.Insert(e.table).Columns(columns...).Values(values...)
	if e.conflict != "" {
		query = query.Suffix("ON CONFLICT " + e.conflict + " DO NOTHING")
	}

	return query.ToSql()
}
