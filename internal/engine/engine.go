// Package engine holds the room state machine: membership and host authority,
// phases, submissions, guesses, the theme mini-game and scoring.
//
// Every mutation goes through a *Room method that validates fully before it
// touches state, so a returned error never leaves a room half-changed.
package engine

import "time"

// Action is one client request. The set is closed: each wire action name maps
// to exactly one variant below.
type Action interface {
	Kind() string
	isAction()
}

type JoinRoom struct {
	Name     string `json:"name"`
	MemberID string `json:"memberId,omitempty"`
}

type Disconnect struct{}

type AssignHost struct {
	TargetID string `json:"targetId"`
}

type ReclaimHost struct {
	HostKey string `json:"hostKey"`
}

type ClaimController struct {
	HostKey string `json:"hostKey"`
}

type ReleaseController struct{}

type SetHardcore struct {
	Hardcore bool `json:"hardcore"`
}

type Rename struct {
	Name string `json:"name"`
}

type AddSubmission struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	SubmitterName string `json:"submitterName"`
	DetailHint    string `json:"detailHint,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type RemoveSubmission struct {
	ID string `json:"id"`
}

type ReorderSubmissions struct {
	OrderedIDs []string `json:"orderedIds"`
}

type SetPhase struct {
	Phase Phase `json:"phase"`
}

type SetIndex struct {
	Index int `json:"index"`
}

type SubmitGuess struct {
	SubmissionID         string `json:"submissionId"`
	GuessedSubmitterName string `json:"guessedSubmitterName"`
	DetailGuess          string `json:"detailGuess,omitempty"`
}

type LockGuess struct {
	SubmissionID string `json:"submissionId"`
}

type LockAllGuesses struct{}

type LockRoomGuesses struct{}

type RevealSubmission struct {
	SubmissionID string `json:"submissionId"`
}

type SetTheme struct {
	Theme string   `json:"theme"`
	Hints []string `json:"hints,omitempty"`
}

type ShowHint struct{}

type RevealTheme struct{}

type GuessTheme struct {
	Guess string `json:"guess"`
}

type ComputeScoresAction struct{}

type GetSongResults struct {
	SubmissionID string `json:"submissionId"`
}

type GetRecap struct{}

type SaveRoom struct{}

type UnsaveRoom struct{}

type GetState struct{}

func (JoinRoom) Kind() string            { return "room:join" }
func (Disconnect) Kind() string          { return "room:leave" }
func (AssignHost) Kind() string          { return "host:assign" }
func (ReclaimHost) Kind() string         { return "host:reclaim" }
func (ClaimController) Kind() string     { return "controller:claim" }
func (ReleaseController) Kind() string   { return "controller:release" }
func (SetHardcore) Kind() string         { return "player:setHardcore" }
func (Rename) Kind() string              { return "player:rename" }
func (AddSubmission) Kind() string       { return "submission:add" }
func (RemoveSubmission) Kind() string    { return "submission:remove" }
func (ReorderSubmissions) Kind() string  { return "submission:reorder" }
func (SetPhase) Kind() string            { return "game:setPhase" }
func (SetIndex) Kind() string            { return "game:setIndex" }
func (SubmitGuess) Kind() string         { return "guess:submit" }
func (LockGuess) Kind() string           { return "guess:lock" }
func (LockAllGuesses) Kind() string      { return "guess:lockAll" }
func (LockRoomGuesses) Kind() string     { return "guess:lockRoom" }
func (RevealSubmission) Kind() string    { return "reveal:add" }
func (SetTheme) Kind() string            { return "theme:set" }
func (ShowHint) Kind() string            { return "theme:hint" }
func (RevealTheme) Kind() string         { return "theme:reveal" }
func (GuessTheme) Kind() string          { return "theme:guess" }
func (ComputeScoresAction) Kind() string { return "score:compute" }
func (GetSongResults) Kind() string      { return "results:song" }
func (GetRecap) Kind() string            { return "results:recap" }
func (SaveRoom) Kind() string            { return "room:save" }
func (UnsaveRoom) Kind() string          { return "room:unsave" }
func (GetState) Kind() string            { return "room:state" }

func (JoinRoom) isAction()            {}
func (Disconnect) isAction()          {}
func (AssignHost) isAction()          {}
func (ReclaimHost) isAction()         {}
func (ClaimController) isAction()     {}
func (ReleaseController) isAction()   {}
func (SetHardcore) isAction()         {}
func (Rename) isAction()              {}
func (AddSubmission) isAction()       {}
func (RemoveSubmission) isAction()    {}
func (ReorderSubmissions) isAction()  {}
func (SetPhase) isAction()            {}
func (SetIndex) isAction()            {}
func (SubmitGuess) isAction()         {}
func (LockGuess) isAction()           {}
func (LockAllGuesses) isAction()      {}
func (LockRoomGuesses) isAction()     {}
func (RevealSubmission) isAction()    {}
func (SetTheme) isAction()            {}
func (ShowHint) isAction()            {}
func (RevealTheme) isAction()         {}
func (GuessTheme) isAction()          {}
func (ComputeScoresAction) isAction() {}
func (GetSongResults) isAction()      {}
func (GetRecap) isAction()            {}
func (SaveRoom) isAction()            {}
func (UnsaveRoom) isAction()          {}
func (GetState) isAction()            {}

// Env carries what Apply needs from outside the room.
type Env struct {
	Now      int64 // unix ms
	TTL      time.Duration
	SavedTTL time.Duration
}

// Outcome is the success side of Apply.
type Outcome struct {
	// Reply is merged into the caller's {ok:true} acknowledgement.
	Reply map[string]any
	// Changed means the public state moved and should be broadcast.
	Changed bool
	// Scores, when set, is broadcast to the room as well.
	Scores *ScoreBoard
	// MemberID is the member the caller is bound to after a join.
	MemberID string
}

// Apply runs one action for callerID against r.
func Apply(r *Room, env Env, callerID string, a Action) (Outcome, error) {
	if env.TTL <= 0 {
		env.TTL = DefaultTTL
	}
	if env.SavedTTL <= 0 {
		env.SavedTTL = DefaultSavedTTL
	}

	switch act := a.(type) {
	case JoinRoom:
		m := r.Join(act.Name, act.MemberID, env.Now)
		return Outcome{
			Reply:    map[string]any{"memberId": m.ID, "room": Project(r, m.ID)},
			Changed:  true,
			MemberID: m.ID,
		}, nil

	case Disconnect:
		if err := r.MarkDisconnected(callerID, env.Now); err != nil {
			return Outcome{}, err
		}
		return changed(nil), nil

	case AssignHost:
		if err := r.AssignHost(callerID, act.TargetID); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"assignedTo": act.TargetID}), nil

	case ReclaimHost:
		if err := r.ReclaimHost(callerID, act.HostKey); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"isHost": true}), nil

	case ClaimController:
		if err := r.ClaimController(callerID, act.HostKey); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"controllerId": callerID}), nil

	case ReleaseController:
		if err := r.ReleaseController(callerID); err != nil {
			return Outcome{}, err
		}
		return changed(nil), nil

	case SetHardcore:
		if err := r.SetHardcore(callerID, act.Hardcore); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"hardcore": act.Hardcore}), nil

	case Rename:
		if err := r.Rename(callerID, act.Name); err != nil {
			return Outcome{}, err
		}
		return changed(nil), nil

	case AddSubmission:
		id, err := r.AddSubmission(callerID, Submission{
			ID:            act.ID,
			Title:         act.Title,
			SubmitterName: act.SubmitterName,
			DetailHint:    act.DetailHint,
			Detail:        act.Detail,
		})
		if err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"id": id}), nil

	case RemoveSubmission:
		removed, err := r.RemoveSubmission(callerID, act.ID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"removed": removed}, Changed: removed}, nil

	case ReorderSubmissions:
		if err := r.ReorderSubmissions(callerID, act.OrderedIDs); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"index": r.CurrentIndex}), nil

	case SetPhase:
		if err := r.SetPhase(callerID, act.Phase); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"phase": r.Phase}), nil

	case SetIndex:
		idx, err := r.SetIndex(callerID, act.Index)
		if err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"index": idx}), nil

	case SubmitGuess:
		err := r.SubmitGuess(callerID, Guess{
			SubmissionID:         act.SubmissionID,
			GuessedSubmitterName: act.GuessedSubmitterName,
			DetailGuess:          act.DetailGuess,
		}, env.Now)
		if err != nil {
			return Outcome{}, err
		}
		// Other members never see guesses, so nothing to broadcast.
		return Outcome{Reply: map[string]any{}}, nil

	case LockGuess:
		if err := r.LockGuess(callerID, act.SubmissionID, env.Now); err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"submissionId": act.SubmissionID, "locked": true}}, nil

	case LockAllGuesses:
		n, err := r.LockAllGuesses(callerID, env.Now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"locked": n}}, nil

	case LockRoomGuesses:
		n, err := r.LockRoomGuesses(callerID, env.Now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"locked": n}}, nil

	case RevealSubmission:
		if err := r.RevealSubmission(callerID, act.SubmissionID); err != nil {
			return Outcome{}, err
		}
		return changed(nil), nil

	case SetTheme:
		if err := r.SetTheme(callerID, act.Theme, act.Hints); err != nil {
			return Outcome{}, err
		}
		return changed(nil), nil

	case ShowHint:
		n, err := r.ShowNextHint(callerID)
		if err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"hintsShown": n}), nil

	case RevealTheme:
		if err := r.RevealTheme(callerID); err != nil {
			return Outcome{}, err
		}
		return changed(map[string]any{"revealed": true}), nil

	case GuessTheme:
		if _, err := r.member(callerID); err != nil {
			return Outcome{}, err
		}
		if r.Theme.CurrentTheme != "" && r.Theme.AttemptedBy[callerID] {
			return Outcome{}, withDetails(ErrThemeLocked, ThemeResult{Correct: false, Locked: true})
		}
		res := r.TrySolveTheme(callerID, act.Guess)
		return changed(map[string]any{"correct": res.Correct, "locked": res.Locked}), nil

	case ComputeScoresAction:
		if _, err := r.member(callerID); err != nil {
			return Outcome{}, err
		}
		board := ComputeScores(r)
		return Outcome{Reply: map[string]any{"scoreboard": board}, Scores: &board}, nil

	case GetSongResults:
		res, err := r.SongResultsFor(callerID, act.SubmissionID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"results": res}}, nil

	case GetRecap:
		recap, err := r.Recap(callerID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: map[string]any{"recap": recap}}, nil

	case SaveRoom:
		if _, err := r.member(callerID); err != nil {
			return Outcome{}, err
		}
		r.MarkSaved(env.Now, env.SavedTTL)
		return changed(map[string]any{"saved": true, "expiresAt": r.ExpiresAt}), nil

	case UnsaveRoom:
		if _, err := r.member(callerID); err != nil {
			return Outcome{}, err
		}
		r.MarkUnsaved(env.Now, env.TTL)
		return changed(map[string]any{"saved": false, "expiresAt": r.ExpiresAt}), nil

	case GetState:
		return Outcome{Reply: map[string]any{"room": Project(r, callerID)}}, nil

	default:
		return Outcome{}, ErrUnknownAction
	}
}

func changed(reply map[string]any) Outcome {
	if reply == nil {
		reply = map[string]any{}
	}
	return Outcome{Reply: reply, Changed: true}
}
