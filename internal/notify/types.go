package notify

import "encoding/json"

// Message is the JSON body of a webhook execution.
//
// The typed fields are the ones the relay sets itself. Fields carries every
// other body key verbatim and is merged in when the message is marshalled;
// a typed field that is set wins over a key of the same name in Fields.
type Message struct {
	Content         string           `json:"content,omitempty"`
	Username        string           `json:"username,omitempty"`
	AvatarURL       string           `json:"avatar_url,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`

	// Fields holds pass-through keys under their webhook names.
	Fields map[string]json.RawMessage `json:"-"`

	// ThreadID is sent as the thread_id query parameter, not in the body.
	ThreadID string `json:"-"`
}

// MarshalJSON encodes the typed fields and merges Fields underneath them.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	typed, err := json.Marshal(plain(m))
	if err != nil || len(m.Fields) == 0 {
		return typed, err
	}

	var set map[string]json.RawMessage
	if err := json.Unmarshal(typed, &set); err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage, len(m.Fields)+len(set))
	for k, v := range m.Fields {
		merged[k] = v
	}
	for k, v := range set {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// AllowedMentions controls which mentions in content notify anyone.
// Parse is always serialized so an empty list suppresses every mention.
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	Roles       []string `json:"roles,omitempty"`
	Users       []string `json:"users,omitempty"`
	RepliedUser bool     `json:"replied_user,omitempty"`
}

// SuppressMentions returns an AllowedMentions that pings nobody.
func SuppressMentions() *AllowedMentions {
	return &AllowedMentions{Parse: []string{}}
}

// Embed is a rich embed as rendered for status notifications.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// gatewayKeys maps the gateway's option names to webhook body keys.
var gatewayKeys = map[string]string{
	"avatarURL":   "avatar_url",
	"threadName":  "thread_name",
	"appliedTags": "applied_tags",
}

// decodeWebhookData turns the "data" object of an executeWebhook frame into
// a Message. Keys are renamed to webhook spelling; values are kept as sent.
// Mentions from the payload are dropped; the Forwarder sets them.
func decodeWebhookData(data []byte) (Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, err
	}

	msg := Message{Fields: make(map[string]json.RawMessage, len(raw))}
	for key, value := range raw {
		if renamed, ok := gatewayKeys[key]; ok {
			key = renamed
		}

		switch key {
		case "allowedMentions", "allowed_mentions":
			// replaced by the Forwarder
		case "threadId", "thread_id":
			msg.ThreadID = scalarString(value)
		case "content":
			if s, ok := stringValue(value); ok {
				msg.Content = s
				continue
			}
			msg.Fields[key] = value
		case "username":
			if s, ok := stringValue(value); ok {
				msg.Username = s
				continue
			}
			msg.Fields[key] = value
		case "avatar_url":
			if s, ok := stringValue(value); ok {
				msg.AvatarURL = s
				continue
			}
			msg.Fields[key] = value
		default:
			msg.Fields[key] = value
		}
	}

	return msg, nil
}

func stringValue(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarString accepts a JSON string or number. Anything else yields "".
func scalarString(v json.RawMessage) string {
	if s, ok := stringValue(v); ok {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}
