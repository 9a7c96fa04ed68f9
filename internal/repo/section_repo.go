package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
)

type SectionRepo struct {
	db *sql.DB
}

func NewSectionRepo(db *sql.DB) *SectionRepo {
	return &SectionRepo{db: db}
}

func sectionRow(s *model.SectionRecord) (map[string]interface{}, error) {
	meta, err := json.Marshal(s.Meta)
	if err != nil {
		return nil, err
	}
	fileMeta, err := marshalJSONMap(s.FileMeta)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"file_id":     s.FileID,
		"project_id":  s.ProjectID,
		"content":     s.Content,
		"meta":        string(meta),
		"file_meta":   fileMeta,
		"embedding":   pgvector.NewVector(s.Embedding),
		"token_count": s.TokenCount,
		"ctime":       s.Ctime,
	}, nil
}

// InsertSections writes all sections in a single statement.
func (r *SectionRepo) InsertSections(ctx context.Context, sections []model.SectionRecord) error {
	if len(sections) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(sections))
	for i := range sections {
		row, err := sectionRow(&sections[i])
		if err != nil {
			return err
		}
		data = append(data, row)
	}
	sqlStr, args, err := builder.BuildInsert("file_sections", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err = r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsMissingParent(err) {
			return fmt.Errorf("file of section missing: %w", appErr.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *SectionRepo) InsertSection(ctx context.Context, section *model.SectionRecord) error {
	return r.InsertSections(ctx, []model.SectionRecord{*section})
}

func (r *SectionRepo) DeleteSections(ctx context.Context, fileID string) error {
	sqlStr, args, err := builder.BuildDelete("file_sections", map[string]interface{}{"file_id": fileID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SectionRepo) ListByFile(ctx context.Context, fileID string) ([]model.SectionRecord, error) {
	sqlStr, args := dbutil.Finalize(`
		SELECT file_id, project_id, content, meta, file_meta, embedding, token_count, ctime
		FROM file_sections
		WHERE file_id = ?
		ORDER BY id ASC
	`, []interface{}{fileID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.SectionRecord, 0)
	for rows.Next() {
		var s model.SectionRecord
		var meta, fileMeta []byte
		var embedding pgvector.Vector
		if err := rows.Scan(&s.FileID, &s.ProjectID, &s.Content, &meta, &fileMeta, &embedding, &s.TokenCount, &s.Ctime); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &s.Meta); err != nil {
				return nil, err
			}
		}
		if err := unmarshalJSONMap(fileMeta, &s.FileMeta); err != nil {
			return nil, err
		}
		s.Embedding = embedding.Slice()
		items = append(items, s)
	}
	return items, rows.Err()
}
