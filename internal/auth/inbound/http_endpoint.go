package inbound

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/auth/usecase"
	"github.com/shandysiswandi/gomfa/internal/pkg/router"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
)

// HTTPEndpoint exposes the login, second factor and session handlers.
type HTTPEndpoint struct {
	uc      uc
	cookies Cookies
}

// Login checks email and password.
// @Summary Sign in with email
// @Description Grants a session, or opens a second factor challenge when the account has one enrolled.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Granted or second factor required"
// @Failure 401 {object} router.errorResponse "INVALID_CREDENTIALS"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /login [post]
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return h.loginResponse(resp), nil
}

// SMSLogin checks phone number and password.
// @Summary Sign in with phone number
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SMSLoginRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Granted or second factor required"
// @Failure 401 {object} router.errorResponse "INVALID_CREDENTIALS"
// @Router /sms-login [post]
func (h *HTTPEndpoint) SMSLogin(r *router.Request) (any, error) {
	var req SMSLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.LoginByPhone(r.Context(), usecase.LoginByPhoneInput{
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		return nil, err
	}

	return h.loginResponse(resp), nil
}

// Register creates an account and opens its enrollment challenge.
// @Summary Register
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} router.successResponse{data=RegisterResponse} "Account created"
// @Failure 409 {object} router.errorResponse "Email or phone number taken"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /register [post]
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Register(r.Context(), usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		PhoneNumber: req.PhoneNumber,
		AuthMethod:  strings.ToLower(strings.TrimSpace(req.AuthMethod)),
	})
	if err != nil {
		return nil, err
	}

	out := RegisterResponse{UserID: resp.UserID}
	if p := resp.Pending; p != nil {
		out.ChallengeToken = p.ChallengeRef
		out.Factor = p.Factor.String()
		out.Delivery = string(p.Delivery)
		out.ChallengeExpiresAt = &p.ExpiresAt
		out.cookies = []*http.Cookie{h.cookies.Challenge.Set(p.ChallengeRef, time.Time{})}
	}

	return out, nil
}

// QR renders the authenticator provisioning image.
// @Summary TOTP provisioning QR code
// @Tags Auth
// @Produce png
// @Param challenge_token query string false "Challenge token, defaults to the challenge cookie"
// @Success 200 {file} binary "PNG image"
// @Failure 409 {object} router.errorResponse "NOT_APPLICABLE"
// @Router /qr [get]
func (h *HTTPEndpoint) QR(r *router.Request) (any, error) {
	ref := r.GetQuery("challenge_token")
	if ref == "" {
		ref = r.GetCookie(h.cookies.Challenge.Name)
	}

	resp, err := h.uc.ProvisioningQR(r.Context(), usecase.ProvisioningQRInput{ChallengeToken: ref})
	if err != nil {
		return nil, h.settle(err)
	}

	return QRResponse{png: resp.PNG}, nil
}

// Validate submits an authenticator code.
// @Summary Submit TOTP code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "TOTP payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Granted"
// @Failure 401 {object} router.errorResponse "INVALID_CODE"
// @Failure 410 {object} router.errorResponse "EXPIRED"
// @Failure 423 {object} router.errorResponse "LOCKED_OUT"
// @Router /validate [post]
func (h *HTTPEndpoint) Validate(r *router.Request) (any, error) {
	var req ValidateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return h.submit(r, req.ChallengeToken, req.Code, entity.FactorTOTP)
}

// VerifyOTP submits an SMS code.
// @Summary Submit SMS code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "OTP payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Granted"
// @Failure 401 {object} router.errorResponse "INVALID_CODE"
// @Failure 410 {object} router.errorResponse "EXPIRED"
// @Failure 423 {object} router.errorResponse "LOCKED_OUT"
// @Router /verify-otp [post]
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return h.submit(r, req.ChallengeToken, req.OTP, entity.FactorSMS)
}

func (h *HTTPEndpoint) submit(r *router.Request, ref, code string, factor entity.FactorKind) (any, error) {
	resp, err := h.uc.SubmitSecondFactor(r.Context(), usecase.SecondFactorInput{
		ChallengeToken: h.challengeRef(r, ref),
		Code:           code,
		Factor:         factor,
	})
	if err != nil {
		return nil, h.settle(err)
	}

	return h.loginResponse(resp), nil
}

// ResendOTP sends a fresh SMS code.
// @Summary Resend SMS code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResendOTPRequest false "Resend payload"
// @Success 200 {object} router.successResponse{data=ResendOTPResponse} "Code sent"
// @Failure 409 {object} router.errorResponse "NOT_APPLICABLE"
// @Failure 429 {object} router.errorResponse "TOO_MANY_RESENDS"
// @Failure 503 {object} router.errorResponse "DELIVERY_FAILED"
// @Router /resend-otp [post]
func (h *HTTPEndpoint) ResendOTP(r *router.Request) (any, error) {
	var req ResendOTPRequest
	if err := r.DecodeOptionalBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Resend(r.Context(), usecase.ResendInput{ChallengeToken: h.challengeRef(r, req.ChallengeToken)})
	if err != nil {
		return nil, h.settle(err)
	}

	return ResendOTPResponse{
		ExpiresAt:        resp.ExpiresAt,
		Resends:          resp.Resends,
		RemainingResends: resp.Remaining,
	}, nil
}

// Logout revokes the current session.
// @Summary Sign out
// @Tags Auth
// @Success 204 "Signed out"
// @Router /logout [post]
func (h *HTTPEndpoint) Logout(r *router.Request) (any, error) {
	token := session.GetToken(r.Context())
	if token == "" {
		token = r.GetCookie(h.cookies.Session.Name)
	}

	if err := h.uc.Logout(r.Context(), usecase.LogoutInput{SessionToken: token}); err != nil {
		return nil, err
	}

	return LogoutResponse{cookies: []*http.Cookie{h.cookies.Session.Clear(), h.cookies.Challenge.Clear()}}, nil
}

// UserInfo returns the profile of the signed in user.
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} router.successResponse{data=UserInfoResponse} "Profile"
// @Failure 401 {object} router.errorResponse "UNAUTHENTICATED or SESSION_EXPIRED"
// @Router /user-info [get]
func (h *HTTPEndpoint) UserInfo(r *router.Request) (any, error) {
	resp, err := h.uc.UserInfo(r.Context())
	if err != nil {
		return nil, err
	}

	return UserInfoResponse{
		ID:               resp.ID,
		Email:            resp.Email,
		FirstName:        resp.FirstName,
		PhoneNumber:      resp.PhoneNumber,
		Factor:           resp.Factor.String(),
		FactorVerified:   resp.FactorVerified,
		SessionExpiresAt: resp.SessionExpiresAt,
	}, nil
}

func (h *HTTPEndpoint) loginResponse(out *usecase.LoginOutput) LoginResponse {
	resp := LoginResponse{Status: string(out.Status)}

	switch {
	case out.Grant != nil:
		resp.message = "signed in"
		resp.UserID = out.Grant.UserID
		resp.SessionExpiresAt = &out.Grant.ExpiresAt
		resp.cookies = []*http.Cookie{
			h.cookies.Session.Set(out.Grant.SessionToken, out.Grant.ExpiresAt),
			h.cookies.Challenge.Clear(),
		}

	case out.Pending != nil:
		resp.message = "second factor required"
		resp.ChallengeToken = out.Pending.ChallengeRef
		resp.Factor = out.Pending.Factor.String()
		resp.Purpose = string(out.Pending.Purpose)
		resp.Delivery = string(out.Pending.Delivery)
		resp.ChallengeExpiresAt = &out.Pending.ExpiresAt
		resp.cookies = []*http.Cookie{h.cookies.Challenge.Set(out.Pending.ChallengeRef, time.Time{})}
	}

	return resp
}

// challengeRef prefers the body field over the challenge cookie.
func (h *HTTPEndpoint) challengeRef(r *router.Request, fromBody string) string {
	if ref := strings.TrimSpace(fromBody); ref != "" {
		return ref
	}
	return r.GetCookie(h.cookies.Challenge.Name)
}

// settle clears the challenge cookie once the challenge can no longer succeed.
func (h *HTTPEndpoint) settle(err error) error {
	switch {
	case errors.Is(err, usecase.ErrExpired),
		errors.Is(err, usecase.ErrLockedOut),
		errors.Is(err, usecase.ErrChallengeNotFound):
		return router.WithCookies(err, h.cookies.Challenge.Clear())
	default:
		return err
	}
}
