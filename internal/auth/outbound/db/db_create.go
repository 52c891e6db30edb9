package db

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
)

func (s *DB) CreateUser(ctx context.Context, in entity.NewUser) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
INSERT INTO users (id, email, first_name, phone_number, password_hash, password_algo, factor, totp_secret)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		in.ID, in.Email, in.FirstName, in.Phone, in.PasswordHash, in.PasswordAlgo, in.Factor.String(), in.TOTPSecret)

	return s.mapError(err)
}
