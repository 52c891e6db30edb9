package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomfa/internal/auth/inbound"
	"github.com/shandysiswandi/gomfa/internal/auth/outbound/cache"
	"github.com/shandysiswandi/gomfa/internal/auth/outbound/db"
	"github.com/shandysiswandi/gomfa/internal/auth/outbound/mq"
	"github.com/shandysiswandi/gomfa/internal/auth/outbound/sms"
	"github.com/shandysiswandi/gomfa/internal/auth/usecase"
	"github.com/shandysiswandi/gomfa/internal/pkg/clock"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/hash"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/lock"
	"github.com/shandysiswandi/gomfa/internal/pkg/messaging"
	"github.com/shandysiswandi/gomfa/internal/pkg/mfa"
	"github.com/shandysiswandi/gomfa/internal/pkg/otp"
	"github.com/shandysiswandi/gomfa/internal/pkg/router"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
	pkgsms "github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/pkg/validator"
)

// Delivery drivers for modules.auth.delivery.driver.
const (
	DeliveryMessaging = "messaging"
	DeliveryDirect    = "direct"
)

type Dependency struct {
	DBConn     *pgxpool.Pool              `validate:"required"`
	CacheConn  redis.UniversalClient      `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Locker     lock.Locker                `validate:"required"`
	Sessions   session.Manager            `validate:"required"`
	Cookies    inbound.Cookies
	Messaging  messaging.Messaging
	SMS        pkgsms.Sender
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Tokens     uid.Tokener                `validate:"required"`
	HMAC       *hash.HMACSHA256           `validate:"required"`
	Passwords  *hash.Passwords            `validate:"required"`
	Codes      otp.Coder                  `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	Encryptor  mfa.Encryptor              `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	gateway, err := newGateway(dep)
	if err != nil {
		return err
	}

	retention := dep.Config.GetSecond("modules.auth.otp.challenge_retention_seconds")
	if retention <= 0 {
		retention = 10 * time.Minute
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:     db.NewDB(dep.DBConn, dep.Instrument),
		RepoCache:  cache.NewCache(dep.CacheConn, dep.Instrument, retention),
		Gateway:    gateway,
		Locker:     dep.Locker,
		Sessions:   dep.Sessions,
		Passwords:  dep.Passwords,
		Digest:     dep.HMAC,
		Tokens:     dep.Tokens,
		Codes:      dep.Codes,
		Totp:       dep.Totp,
		Encryptor:  dep.Encryptor,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Config:     dep.Config,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Cookies)

	return nil
}

type gateway interface {
	Send(ctx context.Context, phone, code string) error
}

func newGateway(dep Dependency) (gateway, error) {
	switch driver := strings.TrimSpace(dep.Config.GetString("modules.auth.delivery.driver")); driver {
	case DeliveryMessaging, "":
		if dep.Messaging == nil {
			return nil, fmt.Errorf("auth: delivery driver %q needs a messaging client", DeliveryMessaging)
		}
		return mq.NewMessaging(dep.Messaging, dep.UUID, dep.Instrument), nil
	case DeliveryDirect:
		if dep.SMS == nil {
			return nil, fmt.Errorf("auth: delivery driver %q needs an sms sender", DeliveryDirect)
		}
		return sms.NewDirect(dep.SMS, dep.UUID, dep.Instrument), nil
	default:
		return nil, fmt.Errorf("auth: unknown delivery driver %q", driver)
	}
}
