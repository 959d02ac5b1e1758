package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/romanzh1/course-player/internal/models"
)

// Get serves the three documents the player reads by id.
func (r *Postgres) Get(ctx context.Context, path string, params map[string]any, dest any) error {
	id, err := paramID(params)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}

	switch path {
	case models.PathUserInfo:
		user, err := r.userInfo(ctx, id)
		if err != nil {
			return err
		}
		return assign(dest, user)
	case models.PathLearnCourse:
		course, err := r.course(ctx, id)
		if err != nil {
			return err
		}
		return assign(dest, course)
	case models.PathLearnModule:
		module, err := r.module(ctx, id)
		if err != nil {
			return err
		}
		return assign(dest, module)
	}

	return fmt.Errorf("get %s: unknown path", path)
}

func (r *Postgres) Collect(ctx context.Context, q models.CollectQuery, dest any) error {
	query, args, err := buildCollect(r.psql, q)
	if err != nil {
		return fmt.Errorf("build SQL query (entity: %s): %w", q.Entity, err)
	}

	if err := r.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("collect (entity: %s): %w", q.Entity, err)
	}

	return nil
}

func (r *Postgres) Create(ctx context.Context, entity string, payload map[string]any) error {
	query, args, err := buildInsert(r.psql, entity, payload)
	if err != nil {
		return fmt.Errorf("build SQL query (entity: %s): %w", entity, err)
	}

	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create (entity: %s): %w", entity, err)
	}

	return nil
}

func (r *Postgres) userInfo(ctx context.Context, id int64) (*models.UserInfo, error) {
	var user models.UserInfo
	err := r.GetContext(ctx, &user, `SELECT id, name, login FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get user (id: %d): %w", id, err)
	}

	if err := r.SelectContext(ctx, &user.Groups, `SELECT name FROM user_groups WHERE user_id = $1 ORDER BY name`, id); err != nil {
		return nil, fmt.Errorf("get user groups (id: %d): %w", id, err)
	}

	return &user, nil
}

// course returns the course with its modules; chapters are left for module
// hydration.
func (r *Postgres) course(ctx context.Context, id int64) (*models.Course, error) {
	var course models.Course

	err := r.RunInTx(ctx, func(tx *Postgres) error {
		if err := tx.GetContext(ctx, &course, `SELECT id, title, creator FROM courses WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("get course (id: %d): %w", id, models.ErrCourseNotFound)
			}
			return fmt.Errorf("get course (id: %d): %w", id, err)
		}

		query, args, err := tx.psql.
			Select("id", "course_id", `"order"`, "title", "duration").
			From("modules").
			Where("course_id = ?", id).
			OrderBy(`"order"`, "id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (course_id: %d): %w", id, err)
		}

		if err := tx.SelectContext(ctx, &course.Modules, query, args...); err != nil {
			return fmt.Errorf("get modules (course_id: %d): %w", id, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &course, nil
}

func (r *Postgres) module(ctx context.Context, id int64) (*models.Module, error) {
	var module models.Module

	err := r.RunInTx(ctx, func(tx *Postgres) error {
		err := tx.GetContext(ctx, &module, `SELECT id, course_id, "order", title, duration FROM modules WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("get module (id: %d): %w", id, err)
		}

		query, args, err := buildCollect(tx.psql, models.CollectQuery{
			Entity:    models.EntityChapter,
			Filters:   []models.Filter{{Field: "module_id", Op: "=", Value: id}},
			SortField: "order",
			SortDir:   models.SortAsc,
		})
		if err != nil {
			return fmt.Errorf("build SQL query (module_id: %d): %w", id, err)
		}

		if err := tx.SelectContext(ctx, &module.Chapters, query, args...); err != nil {
			return fmt.Errorf("get chapters (module_id: %d): %w", id, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &module, nil
}

func paramID(params map[string]any) (int64, error) {
	switch v := params["id"].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse id param (id: %s): %w", v, err)
		}
		return id, nil
	}
	return 0, fmt.Errorf("missing id param")
}

func assign[T any](dest any, v *T) error {
	d, ok := dest.(*T)
	if !ok {
		return fmt.Errorf("unsupported destination %T, want *%T", dest, *v)
	}
	*d = *v
	return nil
}
