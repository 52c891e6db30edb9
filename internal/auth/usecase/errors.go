package usecase

import (
	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

var (
	ErrInvalidCredentials = goerror.NewRejected(entity.ReasonInvalidCredentials.String(), "invalid credentials", goerror.CodeUnauthorized)
	ErrInvalidCode        = goerror.NewRejected(entity.ReasonInvalidCode.String(), "invalid verification code", goerror.CodeUnauthorized)
	ErrExpired            = goerror.NewRejected(entity.ReasonExpired.String(), "verification code expired, please sign in again", goerror.CodeExpired)
	ErrLockedOut          = goerror.NewRejected(entity.ReasonLockedOut.String(), "too many failed attempts, please sign in again", goerror.CodeLocked)
	ErrTooManyResends     = goerror.NewRejected(entity.ReasonTooManyResends.String(), "code resend limit reached, please wait or sign in again", goerror.CodeTooManyRequest)
	ErrNotApplicable      = goerror.NewRejected(entity.ReasonNotApplicable.String(), "operation does not apply to this verification method", goerror.CodeConflict)
	ErrDeliveryFailed     = goerror.NewRejected(entity.ReasonDeliveryFailed.String(), "could not send verification code, please retry", goerror.CodeUnavailable)
	ErrChallengeNotFound  = goerror.NewRejected(entity.ReasonNotFound.String(), "no pending verification, please sign in again", goerror.CodeNotFound)
)
