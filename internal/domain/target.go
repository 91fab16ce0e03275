package domain

// TargetType identifies a delivery channel.
type TargetType string

// Delivery channels.
const (
	TargetTypeEmail TargetType = "email"
	TargetTypeSMS   TargetType = "sms"
	TargetTypeFCM   TargetType = "fcm"
)

// NotificationTarget is a concrete, channel-specific delivery address: an
// email address, a phone number, or a push token.
type NotificationTarget struct {
	Type TargetType `json:"type"`
	To   string     `json:"to"`
}
