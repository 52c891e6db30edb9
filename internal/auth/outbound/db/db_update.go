package db

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

func (s *DB) MarkFactorVerified(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkFactorVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE users SET factor_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

func (s *DB) UpdatePassword(ctx context.Context, id int64, digest, algo string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdatePassword")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE users SET password_hash = $2, password_algo = $3, updated_at = now() WHERE id = $1`, id, digest, algo)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}
	return nil
}
