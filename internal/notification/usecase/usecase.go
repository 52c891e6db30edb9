package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/gomfa/internal/notification/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	RecordDelivery(ctx context.Context, d entity.Delivery) error
}

type repoSMS interface {
	Send(ctx context.Context, msg sms.Message) error
}

type Usecase struct {
	repoDB      repoDB
	repoSMS     repoSMS
	idempotency idempotency.Idempotency
	cfg         config.Config
	uid         uid.NumberID
	validator   validator.Validator
	ins         instrument.Instrumentation
}

type Dependency struct {
	RepoDB      repoDB
	RepoSMS     repoSMS
	Idempotency idempotency.Idempotency
	Config      config.Config
	UID         uid.NumberID
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:      dep.RepoDB,
		repoSMS:     dep.RepoSMS,
		idempotency: dep.Idempotency,
		cfg:         dep.Config,
		uid:         dep.UID,
		validator:   dep.Validator,
		ins:         dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) maxAttempts() int {
	if n := s.cfg.GetInt("modules.notification.sms.max_attempts"); n > 0 {
		return n
	}
	return 5
}

// completedTTL outlives any broker redelivery of the same message.
func (s *Usecase) completedTTL() time.Duration {
	if d := s.cfg.GetSecond("modules.notification.sms.idempotency_ttl_seconds"); d > 0 {
		return d
	}
	return time.Hour
}
