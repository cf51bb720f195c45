package domain

import "time"

// Sender tags who produced a Turn.
type Sender string

const (
	UserSender Sender = "user"
	BotSender  Sender = "bot"
)

// Turn is one message in a transcript. Turns are never edited after they are
// appended.
type Turn struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

func UserTurn(text string) Turn { return Turn{Text: text, Sender: UserSender} }

func BotTurn(text string) Turn { return Turn{Text: text, Sender: BotSender} }

// TurnEvent is published whenever a session transcript grows or its in-flight
// flag flips.
type TurnEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Sender    Sender    `json:"sender,omitempty"`
	Text      string    `json:"text,omitempty"`
	Sending   bool      `json:"sending"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TurnEventType  = "turn"
	StateEventType = "state"
)
