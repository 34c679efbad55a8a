// Package snapshot converts rooms to and from their persisted JSON form.
//
// Map and set shaped fields (members, revealed ids, theme attempts) are written
// as arrays. Revive reads untrusted JSON back, coercing each field to a safe
// default and dropping malformed entries one by one instead of failing the room.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/greenwinther/guess-the-song2/internal/engine"
)

// Record is one persisted room. Code and ExpiresAt are copied out of the
// payload so stores can index and prune without decoding it.
type Record struct {
	Code      string          `json:"code"`
	ExpiresAt int64           `json:"expiresAt"`
	Payload   json.RawMessage `json:"room"`
}

type roomDoc struct {
	Code                  string              `json:"code"`
	Phase                 engine.Phase        `json:"phase"`
	CurrentIndex          int                 `json:"currentIndex"`
	Members               []engine.Member     `json:"members"`
	Submissions           []engine.Submission `json:"submissions"`
	Guesses               []engine.Guess      `json:"guesses"`
	RevealedSubmissionIDs []string            `json:"revealedSubmissionIds"`
	Theme                 themeDoc            `json:"theme"`
	Rules                 engine.Rules        `json:"rules"`
	ControllerID          string              `json:"controllerId,omitempty"`
	HostKey               string              `json:"hostKey"`
	CreatedAt             int64               `json:"createdAt"`
	ExpiresAt             int64               `json:"expiresAt"`
	Saved                 bool                `json:"saved"`
}

type themeDoc struct {
	CurrentTheme    *string        `json:"currentTheme"`
	NormalizedTheme string         `json:"normalizedTheme"`
	Hints           []string       `json:"hints"`
	HintsShown      int            `json:"hintsShown"`
	Revealed        bool           `json:"revealed"`
	SolvedBy        []engine.Solve `json:"solvedBy"`
	AttemptedBy     []string       `json:"attemptedBy"`
}

// Encode serializes r. The caller must hold the room exclusively.
func Encode(r *engine.Room) ([]byte, error) {
	doc := roomDoc{
		Code:                  r.Code,
		Phase:                 r.Phase,
		CurrentIndex:          r.CurrentIndex,
		Members:               make([]engine.Member, 0, len(r.Members)),
		Submissions:           append([]engine.Submission{}, r.Submissions...),
		Guesses:               append([]engine.Guess{}, r.Guesses...),
		RevealedSubmissionIDs: setToSlice(r.RevealedSubmissionIDs),
		Theme: themeDoc{
			NormalizedTheme: r.Theme.NormalizedTheme,
			Hints:           append([]string{}, r.Theme.Hints...),
			HintsShown:      r.Theme.HintsShown,
			Revealed:        r.Theme.Revealed,
			SolvedBy:        append([]engine.Solve{}, r.Theme.SolvedBy...),
			AttemptedBy:     setToSlice(r.Theme.AttemptedBy),
		},
		Rules:        r.Rules,
		ControllerID: r.ControllerID,
		HostKey:      r.HostKey,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		Saved:        r.Saved,
	}
	for _, m := range r.OrderedMembers() {
		doc.Members = append(doc.Members, *m)
	}
	if r.Theme.CurrentTheme != "" {
		theme := r.Theme.CurrentTheme
		doc.Theme.CurrentTheme = &theme
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", r.Code, err)
	}
	return b, nil
}

// Capture encodes r into a Record.
func Capture(r *engine.Room) (Record, error) {
	b, err := Encode(r)
	if err != nil {
		return Record{}, err
	}
	return Record{Code: r.Code, ExpiresAt: r.ExpiresAt, Payload: b}, nil
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
