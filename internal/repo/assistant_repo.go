package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/zlynx/assistkb/internal/model"
	"github.com/zlynx/assistkb/internal/pkg/dbutil"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

type AssistantRepo struct {
	db *sql.DB
}

func NewAssistantRepo(db *sql.DB) *AssistantRepo {
	return &AssistantRepo{db: db}
}

func (r *AssistantRepo) Create(ctx context.Context, item *model.Assistant) error {
	data := map[string]interface{}{
		"id":           item.ID,
		"user_id":      item.UserID,
		"name":         item.Name,
		"instructions": item.Instructions,
		"ctime":        item.Ctime,
		"mtime":        item.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("assistants", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *AssistantRepo) GetByID(ctx context.Context, userID, id string) (*model.Assistant, error) {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("assistants", where,
		[]string{"id", "user_id", "name", "instructions", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var item model.Assistant
	if err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.Instructions, &item.Ctime, &item.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *AssistantRepo) ListByUser(ctx context.Context, userID string) ([]model.Assistant, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("assistants", where,
		[]string{"id", "user_id", "name", "instructions", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Assistant
	for rows.Next() {
		var item model.Assistant
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Instructions, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *AssistantRepo) Update(ctx context.Context, item *model.Assistant) error {
	where := map[string]interface{}{
		"id":      item.ID,
		"user_id": item.UserID,
	}
	update := map[string]interface{}{
		"name":         item.Name,
		"instructions": item.Instructions,
		"mtime":        item.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("assistants", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *AssistantRepo) Delete(ctx context.Context, userID, id string) error {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("assistants", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
