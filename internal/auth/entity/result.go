package entity

import "time"

// Reason is the machine readable cause of a rejected authentication step.
type Reason string

const (
	ReasonInvalidCredentials Reason = "INVALID_CREDENTIALS"
	ReasonInvalidCode        Reason = "INVALID_CODE"
	ReasonExpired            Reason = "EXPIRED"
	ReasonLockedOut          Reason = "LOCKED_OUT"
	ReasonTooManyResends     Reason = "TOO_MANY_RESENDS"
	ReasonNotApplicable      Reason = "NOT_APPLICABLE"
	ReasonDeliveryFailed     Reason = "DELIVERY_FAILED"
	ReasonNotFound           Reason = "NOT_FOUND"
)

func (r Reason) String() string { return string(r) }

// DeliveryStatus reports what happened to an SMS code at issuance.
type DeliveryStatus string

const (
	DeliveryNone   DeliveryStatus = ""
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// LoginStatus is the outcome of a first factor or a second factor step.
type LoginStatus string

const (
	LoginGranted              LoginStatus = "granted"
	LoginSecondFactorRequired LoginStatus = "second_factor_required"
)

// Grant is an issued session handed back to the transport.
type Grant struct {
	UserID       int64
	SessionToken string
	ExpiresAt    time.Time
}

// Pending is an open challenge handed back to the transport.
type Pending struct {
	ChallengeRef string
	Factor       FactorKind
	Purpose      ChallengePurpose
	Delivery     DeliveryStatus
	ExpiresAt    time.Time
}
