package types

import (
	"encoding/json"

	"github.com/greenwinther/guess-the-song2/internal/engine"
)

// ClientMessage is one request from a socket. ReqID is echoed in the ack.
type ClientMessage struct {
	Type    string          `json:"type"`
	ReqID   string          `json:"reqId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is either an ack ("ack") or a pushed event
// ("room:update" | "score:update" | "room:closed").
type ServerMessage struct {
	Type    string             `json:"type"`
	ReqID   string             `json:"reqId,omitempty"`
	Action  string             `json:"action,omitempty"`
	Version int                `json:"version,omitempty"`
	Ack     *Ack               `json:"ack,omitempty"`
	Room    *engine.PublicRoom `json:"room,omitempty"`
	Scores  *engine.ScoreBoard `json:"scores,omitempty"`
}

const (
	TypeAck = "ack"

	ErrRateLimited = "RATE_LIMITED"
)

// Ack is {ok:true, ...extra} or {ok:false, error, details?}.
type Ack struct {
	OK      bool
	Error   string
	Details any
	Extra   map[string]any
}

func OK(extra map[string]any) *Ack { return &Ack{OK: true, Extra: extra} }

// Fail builds a failed ack from any error, using its protocol code.
func Fail(err error) *Ack {
	code, details := engine.CodeOf(err)
	return &Ack{Error: string(code), Details: details}
}

func (a Ack) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+3)
	for k, v := range a.Extra {
		out[k] = v
	}
	out["ok"] = a.OK
	if !a.OK {
		out["error"] = a.Error
		if a.Details != nil {
			out["details"] = a.Details
		}
	}
	return json.Marshal(out)
}
