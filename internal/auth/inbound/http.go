package inbound

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/auth/usecase"
	"github.com/shandysiswandi/gomfa/internal/pkg/router"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
)

type uc interface {
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	LoginByPhone(ctx context.Context, in usecase.LoginByPhoneInput) (*usecase.LoginOutput, error)
	SubmitSecondFactor(ctx context.Context, in usecase.SecondFactorInput) (*usecase.LoginOutput, error)
	Resend(ctx context.Context, in usecase.ResendInput) (*usecase.ResendOutput, error)

	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error)
	ProvisioningQR(ctx context.Context, in usecase.ProvisioningQRInput) (*usecase.ProvisioningQROutput, error)

	Logout(ctx context.Context, in usecase.LogoutInput) error
	UserInfo(ctx context.Context) (*usecase.UserInfoOutput, error)
}

// Cookies names the cookies the endpoints write.
type Cookies struct {
	Session   session.Cookie
	Challenge session.Cookie
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, cookies Cookies) {
	end := &HTTPEndpoint{uc: uc, cookies: cookies}

	// First factor
	r.POST("/login", end.Login)
	r.POST("/sms-login", end.SMSLogin)
	r.POST("/register", end.Register)

	// Second factor
	r.GET("/qr", end.QR)
	r.POST("/validate", end.Validate)
	r.POST("/verify-otp", end.VerifyOTP)
	r.POST("/resend-otp", end.ResendOTP)

	// Session
	r.POST("/logout", end.Logout)
	r.GET("/user-info", end.UserInfo) // need authenticated
}
