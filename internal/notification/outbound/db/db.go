package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gomfa/internal/notification/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordDelivery inserts the first attempt of a delivery and updates it on
// every redelivery.
func (s *DB) RecordDelivery(ctx context.Context, d entity.Delivery) (err error) {
	ctx, span := s.startSpan(ctx, "RecordDelivery")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
INSERT INTO sms_deliveries (id, delivery_id, phone_masked, status, error)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT (delivery_id) DO UPDATE
SET status = EXCLUDED.status,
    error = EXCLUDED.error,
    attempts = sms_deliveries.attempts + 1,
    updated_at = now()`,
		d.ID, d.DeliveryID, d.PhoneMasked, d.Status.String(), d.Error)

	return err
}

// GetDelivery returns the row of deliveryID and its attempt count.
func (s *DB) GetDelivery(ctx context.Context, deliveryID string) (_ *entity.Delivery, attempts int, err error) {
	ctx, span := s.startSpan(ctx, "GetDelivery")
	defer func() { s.endSpan(span, err) }()

	var (
		d      entity.Delivery
		status string
		errMsg *string
	)
	err = s.conn.QueryRow(ctx, `
SELECT id, delivery_id, phone_masked, status, error, attempts
FROM sms_deliveries WHERE delivery_id = $1`, deliveryID).
		Scan(&d.ID, &d.DeliveryID, &d.PhoneMasked, &status, &errMsg, &attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, goerror.ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	d.Status = entity.DeliveryStatus(status)
	if errMsg != nil {
		d.Error = *errMsg
	}
	return &d, attempts, nil
}
