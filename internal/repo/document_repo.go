package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/zlynx/assistkb/internal/model"
	"github.com/zlynx/assistkb/internal/pkg/dbutil"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"assistant_id": doc.AssistantID,
		"name":         doc.Name,
		"size":         doc.Size,
		"file_key":     doc.FileKey,
		"ctime":        doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
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

// MarkProcessed stamps the ingestion-complete marker. Last write wins when
// two uploads race on the same document.
func (r *DocumentRepo) MarkProcessed(ctx context.Context, assistantID, docID string, ts int64) error {
	where := map[string]interface{}{
		"id":           docID,
		"assistant_id": assistantID,
	}
	update := map[string]interface{}{
		"processed_at": ts,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
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

func (r *DocumentRepo) GetByID(ctx context.Context, assistantID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":           docID,
		"assistant_id": assistantID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "assistant_id", "name", "size", "file_key", "processed_at", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) ListByAssistant(ctx context.Context, assistantID string) ([]model.Document, error) {
	where := map[string]interface{}{
		"assistant_id": assistantID,
		"_orderby":     "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "assistant_id", "name", "size", "file_key", "processed_at", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *doc)
	}
	return results, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, assistantID, docID string) (int64, error) {
	where := map[string]interface{}{
		"id":           docID,
		"assistant_id": assistantID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *DocumentRepo) DeleteByAssistant(ctx context.Context, assistantID string) (int64, error) {
	where := map[string]interface{}{
		"assistant_id": assistantID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListUnprocessedBefore returns documents whose ingestion never completed
// and whose upload happened before the cutoff. Gendry cannot express IS NULL
// so this one stays raw SQL.
func (r *DocumentRepo) ListUnprocessedBefore(ctx context.Context, cutoff int64) ([]model.Document, error) {
	const sqlStr = `SELECT id, assistant_id, name, size, file_key, processed_at, ctime
FROM documents WHERE processed_at IS NULL AND ctime < $1 ORDER BY ctime ASC`
	rows, err := r.db.QueryContext(ctx, sqlStr, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *doc)
	}
	return results, rows.Err()
}

func (r *DocumentRepo) DeleteUnprocessedBefore(ctx context.Context, cutoff int64) (int64, error) {
	const sqlStr = `DELETE FROM documents WHERE processed_at IS NULL AND ctime < $1`
	result, err := r.db.ExecContext(ctx, sqlStr, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var processed sql.NullInt64
	if err := row.Scan(&doc.ID, &doc.AssistantID, &doc.Name, &doc.Size, &doc.FileKey, &processed, &doc.Ctime); err != nil {
		return nil, err
	}
	if processed.Valid {
		doc.ProcessedAt = processed.Int64
	}
	return &doc, nil
}
