package entity

// DeliveryStatus is the outcome of one SMS dispatch.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

// Delivery is one row of sms_deliveries. A redelivered message updates the
// row of its DeliveryID and bumps the attempt counter.
type Delivery struct {
	ID          int64
	DeliveryID  string
	PhoneMasked string
	Status      DeliveryStatus
	Error       string
}
