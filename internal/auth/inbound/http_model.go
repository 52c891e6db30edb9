package inbound

import (
	"net/http"
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SMSLoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

// LoginResponse is shared by every step that may end in a session.
type LoginResponse struct {
	Status string `json:"status"`

	// granted
	UserID           int64      `json:"user_id,omitempty,string"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`

	// second_factor_required
	ChallengeToken     string     `json:"challenge_token,omitempty"`
	Factor             string     `json:"factor,omitempty"`
	Purpose            string     `json:"purpose,omitempty"`
	Delivery           string     `json:"delivery,omitempty"`
	ChallengeExpiresAt *time.Time `json:"challenge_expires_at,omitempty"`

	message string
	cookies []*http.Cookie
}

func (r LoginResponse) Message() string         { return r.message }
func (r LoginResponse) Cookies() []*http.Cookie { return r.cookies }

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	PhoneNumber string `json:"phone_number"`
	AuthMethod  string `json:"auth_method"`
}

type RegisterResponse struct {
	UserID             int64      `json:"user_id,string"`
	ChallengeToken     string     `json:"challenge_token,omitempty"`
	Factor             string     `json:"factor,omitempty"`
	Delivery           string     `json:"delivery,omitempty"`
	ChallengeExpiresAt *time.Time `json:"challenge_expires_at,omitempty"`

	cookies []*http.Cookie
}

func (RegisterResponse) StatusCode() int           { return http.StatusCreated }
func (RegisterResponse) Message() string           { return "account registered" }
func (r RegisterResponse) Cookies() []*http.Cookie { return r.cookies }

type ValidateRequest struct {
	Code           string `json:"code"`
	ChallengeToken string `json:"challenge_token"`
}

type VerifyOTPRequest struct {
	OTP            string `json:"otp"`
	ChallengeToken string `json:"challenge_token"`
}

type ResendOTPRequest struct {
	ChallengeToken string `json:"challenge_token"`
}

type ResendOTPResponse struct {
	ExpiresAt        time.Time `json:"expires_at"`
	Resends          int       `json:"resends"`
	RemainingResends int       `json:"remaining_resends"`
}

func (ResendOTPResponse) Message() string { return "verification code sent" }

// QRResponse is the provisioning PNG, written as is.
type QRResponse struct {
	png []byte
}

func (QRResponse) ContentType() string { return "image/png" }
func (r QRResponse) Bytes() []byte     { return r.png }

type LogoutResponse struct {
	cookies []*http.Cookie
}

func (LogoutResponse) StatusCode() int           { return http.StatusNoContent }
func (r LogoutResponse) Cookies() []*http.Cookie { return r.cookies }

type UserInfoResponse struct {
	ID               int64     `json:"id,string"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	PhoneNumber      string    `json:"phone_number,omitempty"`
	Factor           string    `json:"factor"`
	FactorVerified   bool      `json:"factor_verified"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}
