package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/gomfa/internal/auth"
	"github.com/shandysiswandi/gomfa/internal/notification"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.auth.enabled") {
		if err := auth.New(auth.Dependency{
			DBConn:     a.dbConn,
			CacheConn:  a.cacheConn,
			Router:     a.router,
			Locker:     a.locker,
			Sessions:   a.sessions,
			Cookies:    a.cookies,
			Messaging:  a.messaging,
			SMS:        a.sms,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			UUID:       a.uuid,
			Tokens:     a.tokens,
			HMAC:       a.hmac,
			Passwords:  a.passwords,
			Codes:      a.codes,
			Totp:       a.totp,
			Encryptor:  a.mfaEncryptor,
			Clock:      a.clock,
			Validator:  a.validator,
		}); err != nil {
			slog.Error("failed to init module auth", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			Messaging:   a.messaging,
			Idempotency: a.idemp,
			SMS:         a.sms,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			UUID:        a.uuid,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
