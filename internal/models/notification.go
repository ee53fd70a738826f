package models

// StatusKind is the throttle key for notifications.
type StatusKind string

const (
	KindUp      StatusKind = "up"
	KindDown    StatusKind = "down"
	KindWarning StatusKind = "warning"
)

// ChannelKind selects the delivery format of a notification channel.
type ChannelKind string

const (
	ChannelTelegram ChannelKind = "telegram"
	ChannelWebhook  ChannelKind = "webhook"
)
