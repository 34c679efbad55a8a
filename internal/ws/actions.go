package ws

import (
	"encoding/json"

	"github.com/greenwinther/guess-the-song2/internal/engine"
)

const (
	actionCreate = "room:create"
	actionJoin   = "room:join"
	actionLeave  = "room:leave"
)

type createPayload struct {
	Code string `json:"code"`
}

type joinPayload struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	MemberID string `json:"memberId,omitempty"`
}

type decoder func(json.RawMessage) (engine.Action, error)

// decoders maps every in-room action name to its payload decoder.
var decoders = map[string]decoder{
	engine.AssignHost{}.Kind():          decode[engine.AssignHost],
	engine.ReclaimHost{}.Kind():         decode[engine.ReclaimHost],
	engine.ClaimController{}.Kind():     decode[engine.ClaimController],
	engine.ReleaseController{}.Kind():   decode[engine.ReleaseController],
	engine.SetHardcore{}.Kind():         decode[engine.SetHardcore],
	engine.Rename{}.Kind():              decode[engine.Rename],
	engine.AddSubmission{}.Kind():       decode[engine.AddSubmission],
	engine.RemoveSubmission{}.Kind():    decode[engine.RemoveSubmission],
	engine.ReorderSubmissions{}.Kind():  decode[engine.ReorderSubmissions],
	engine.SetPhase{}.Kind():            decode[engine.SetPhase],
	engine.SetIndex{}.Kind():            decode[engine.SetIndex],
	engine.SubmitGuess{}.Kind():         decode[engine.SubmitGuess],
	engine.LockGuess{}.Kind():           decode[engine.LockGuess],
	engine.LockAllGuesses{}.Kind():      decode[engine.LockAllGuesses],
	engine.LockRoomGuesses{}.Kind():     decode[engine.LockRoomGuesses],
	engine.RevealSubmission{}.Kind():    decode[engine.RevealSubmission],
	engine.SetTheme{}.Kind():            decode[engine.SetTheme],
	engine.ShowHint{}.Kind():            decode[engine.ShowHint],
	engine.RevealTheme{}.Kind():         decode[engine.RevealTheme],
	engine.GuessTheme{}.Kind():          decode[engine.GuessTheme],
	engine.ComputeScoresAction{}.Kind(): decode[engine.ComputeScoresAction],
	engine.GetSongResults{}.Kind():      decode[engine.GetSongResults],
	engine.GetRecap{}.Kind():            decode[engine.GetRecap],
	engine.SaveRoom{}.Kind():            decode[engine.SaveRoom],
	engine.UnsaveRoom{}.Kind():          decode[engine.UnsaveRoom],
	engine.GetState{}.Kind():            decode[engine.GetState],
}

func decode[T engine.Action](raw json.RawMessage) (engine.Action, error) {
	var a T
	if err := unmarshalPayload(raw, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// unmarshalPayload treats a missing payload as an empty object.
func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &engine.DetailedError{Code: engine.ErrBadPayload, Details: map[string]any{"reason": err.Error()}}
	}
	return nil
}

// toEngineAction resolves an in-room action. Unknown names report UNKNOWN_ACTION.
func toEngineAction(name string, payload json.RawMessage) (engine.Action, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, engine.ErrUnknownAction
	}
	return dec(payload)
}
