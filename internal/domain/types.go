package domain

import "time"

// Account is a Telegram account known to this installation.
type Account struct {
	ID          int64  `yaml:"id"`
	Phone       string `yaml:"phone"`
	Username    string `yaml:"username,omitempty"`
	DisplayName string `yaml:"display_name,omitempty"`
	SessionKey  string `yaml:"session_key"` // opaque, names the session directory
	Active      bool   `yaml:"active"`
}

// Label returns the best human readable name for the account.
func (a Account) Label() string {
	switch {
	case a.DisplayName != "":
		return a.DisplayName
	case a.Username != "":
		return "@" + a.Username
	case a.Phone != "":
		return a.Phone
	default:
		return "Unknown"
	}
}

type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatGroup
	ChatChannel
)

func (k ChatKind) String() string {
	switch k {
	case ChatPrivate:
		return "private"
	case ChatGroup:
		return "group"
	case ChatChannel:
		return "channel"
	default:
		return "unknown"
	}
}

type Chat struct {
	ID          int64
	Title       string
	Kind        ChatKind
	UnreadCount int
}

// Message is rendered and discarded; history is fetched again on demand.
type Message struct {
	ID          int
	ChatID      int64
	SenderLabel string
	Content     string
	Markdown    bool // Content carries markdown converted from Telegram entities
	Timestamp   time.Time
	Outgoing    bool
}

type AuthorizationState int

const (
	AuthAwaitingParameters AuthorizationState = iota
	AuthAwaitingPhoneNumber
	AuthAwaitingCode
	AuthAwaitingPassword
	AuthReady
	AuthLoggingOut
	AuthClosing
	AuthClosed
)

func (s AuthorizationState) String() string {
	switch s {
	case AuthAwaitingParameters:
		return "awaiting-parameters"
	case AuthAwaitingPhoneNumber:
		return "awaiting-phone-number"
	case AuthAwaitingCode:
		return "awaiting-code"
	case AuthAwaitingPassword:
		return "awaiting-password"
	case AuthReady:
		return "ready"
	case AuthLoggingOut:
		return "logging-out"
	case AuthClosing:
		return "closing"
	case AuthClosed:
		return "closed"
	default:
		return "unknown"
	}
}
