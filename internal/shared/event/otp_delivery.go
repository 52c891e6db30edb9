package event

const OTPDeliveryDestination string = "auth_otp_delivery"
const OTPDeliveryConsumerNotification string = "auth_otp_delivery_notification"

// OTPDeliveryMessage asks the notification worker to text a one-time code.
// DeliveryID is unique per send and doubles as the idempotency key.
type OTPDeliveryMessage struct {
	DeliveryID  string `json:"delivery_id"`
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

// Text is the SMS body sent to the recipient.
func (m OTPDeliveryMessage) Text() string {
	return "Your verification code is " + m.Code + ". Do not share it with anyone."
}
