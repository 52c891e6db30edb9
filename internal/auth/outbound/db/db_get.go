package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/gomfa/internal/auth/entity"
)

const selectUser = `
SELECT id, email, first_name, phone_number, password_hash, password_algo,
       factor, totp_secret, factor_verified, created_at, updated_at
FROM users
`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u      entity.User
		phone  pgtype.Text
		factor string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &phone, &u.PasswordHash, &u.PasswordAlgo,
		&factor, &u.TOTPSecret, &u.FactorVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Phone = phone.String
	u.Factor = entity.FactorKindFromString(factor)
	return &u, nil
}

func (s *DB) GetUserByEmail(ctx context.Context, email string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByEmail")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx, selectUser+`WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}

func (s *DB) GetUserByPhone(ctx context.Context, phone string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByPhone")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx, selectUser+`WHERE phone_number = $1`, phone))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	user, err := scanUser(s.conn.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}
	return user, nil
}
