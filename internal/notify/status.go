package notify

import "fmt"

// Status is an internally generated lifecycle notification.
type Status int

const (
	StatusConnected Status = iota
	StatusEnabled
	StatusDisabled
	StatusReconnecting
	StatusUnauthorized
	StatusDuplicateConnection
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusReconnecting:
		return "reconnecting"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusDuplicateConnection:
		return "duplicate_connection"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Theme holds the colors and emojis status embeds are rendered with.
type Theme struct {
	ServiceName  string
	SuccessColor int
	ErrorColor   int
	NoneColor    int
	SuccessEmoji string
	ErrorEmoji   string
	NoneEmoji    string
}

// Render builds the message for a status.
func (t Theme) Render(s Status) Message {
	var e Embed
	switch s {
	case StatusConnected:
		e = t.banner(t.SuccessEmoji, "Connected", t.SuccessColor)
	case StatusEnabled:
		e = t.banner(t.SuccessEmoji, "Enabled", t.SuccessColor)
	case StatusDisabled:
		e = t.banner(t.ErrorEmoji, "Disabled", t.ErrorColor)
	case StatusReconnecting:
		e = t.banner(t.NoneEmoji, "Reconnecting", t.NoneColor)
	case StatusUnauthorized:
		e = t.alert("Unauthorized", "The API token is invalid.")
	case StatusDuplicateConnection:
		e = t.alert("Duplicate Connection", "The API token is already in-use.")
	case StatusRevoked:
		e = t.alert("Deleted", "The API token has been deleted.")
	default:
		e = t.banner(t.NoneEmoji, s.String(), t.NoneColor)
	}
	return Message{Embeds: []Embed{e}}
}

// banner is a one-line "<emoji> **<service>** - <state>" embed.
func (t Theme) banner(emoji, state string, color int) Embed {
	return Embed{
		Description: fmt.Sprintf("%s **%s** - %s", emoji, t.ServiceName, state),
		Color:       color,
	}
}

func (t Theme) alert(title, description string) Embed {
	return Embed{
		Title:       fmt.Sprintf("%s %s", t.ErrorEmoji, title),
		Description: description,
		Color:       t.ErrorColor,
	}
}
