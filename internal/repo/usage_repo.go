package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/pkg/dbutil"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) AddUsage(ctx context.Context, u *model.TokenUsage) error {
	if u.Tokens <= 0 {
		return nil
	}
	data := map[string]interface{}{
		"team_id":   u.TeamID,
		"source_id": u.SourceID,
		"job_id":    u.JobID,
		"tokens":    u.Tokens,
		"ctime":     u.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("token_usage", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UsageRepo) UsedTokens(ctx context.Context, teamID string) (int64, error) {
	sqlStr, args := dbutil.Finalize("SELECT COALESCE(SUM(tokens), 0) FROM token_usage WHERE team_id = ?", []interface{}{teamID})
	var total int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
