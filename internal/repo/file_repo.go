package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
)

type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

var fileColumns = []string{
	"id", "source_id", "project_id", "path", "checksum", "meta", "raw_content",
	"token_count", "internal_metadata", "ctime", "mtime",
}

func (r *FileRepo) CreateFile(ctx context.Context, f *model.FileRecord) error {
	meta, err := marshalJSONMap(f.Meta)
	if err != nil {
		return err
	}
	internal, err := marshalJSONMap(f.InternalMetadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":                f.ID,
		"source_id":         f.SourceID,
		"project_id":        f.ProjectID,
		"path":              f.Path,
		"checksum":          f.Checksum,
		"meta":              meta,
		"raw_content":       f.RawContent,
		"token_count":       f.TokenCount,
		"internal_metadata": internal,
		"ctime":             f.Ctime,
		"mtime":             f.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("files", []map[string]interface{}{data})
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

func (r *FileRepo) UpdateFile(ctx context.Context, f *model.FileRecord) error {
	meta, err := marshalJSONMap(f.Meta)
	if err != nil {
		return err
	}
	internal, err := marshalJSONMap(f.InternalMetadata)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": f.ID}
	update := map[string]interface{}{
		"checksum":          f.Checksum,
		"meta":              meta,
		"raw_content":       f.RawContent,
		"internal_metadata": internal,
		"mtime":             f.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("files", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *FileRepo) CompleteFile(ctx context.Context, fileID, checksum string, tokens int) error {
	update := map[string]interface{}{"checksum": checksum, "token_count": tokens}
	sqlStr, args, err := builder.BuildUpdate("files", map[string]interface{}{"id": fileID}, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return execAffected(ctx, r.db, sqlStr, args)
}

// DeleteFile removes the file; its sections go with it through the foreign
// key cascade. Deleting a missing file is not an error.
func (r *FileRepo) DeleteFile(ctx context.Context, fileID string) error {
	sqlStr, args, err := builder.BuildDelete("files", map[string]interface{}{"id": fileID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FileRepo) FindFile(ctx context.Context, sourceID, path string) (*model.FileRecord, error) {
	sqlStr, args, err := builder.BuildSelect("files", map[string]interface{}{"source_id": sourceID, "path": path}, fileColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanFile(rows)
}

func (r *FileRepo) ListChecksums(ctx context.Context, sourceID string) (map[string]string, error) {
	sqlStr, args, err := builder.BuildSelect("files", map[string]interface{}{"source_id": sourceID}, []string{"path", "checksum"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, sum string
		if err := rows.Scan(&path, &sum); err != nil {
			return nil, err
		}
		out[path] = sum
	}
	return out, rows.Err()
}

func (r *FileRepo) CountBySource(ctx context.Context, sourceID string) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM files WHERE source_id = ?", []interface{}{sourceID})
	var n int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanFile(rows *sql.Rows) (*model.FileRecord, error) {
	var f model.FileRecord
	var meta, internal []byte
	if err := rows.Scan(&f.ID, &f.SourceID, &f.ProjectID, &f.Path, &f.Checksum, &meta, &f.RawContent,
		&f.TokenCount, &internal, &f.Ctime, &f.Mtime); err != nil {
		return nil, err
	}
	if err := unmarshalJSONMap(meta, &f.Meta); err != nil {
		return nil, err
	}
	if err := unmarshalJSONMap(internal, &f.InternalMetadata); err != nil {
		return nil, err
	}
	return &f, nil
}

func execAffected(ctx context.Context, db *sql.DB, sqlStr string, args []interface{}) error {
	res, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func marshalJSONMap(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSONMap(data []byte, dst *map[string]interface{}) error {
	if len(data) == 0 {
		*dst = map[string]interface{}{}
		return nil
	}
	return json.Unmarshal(data, dst)
}
