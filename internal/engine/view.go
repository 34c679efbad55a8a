package engine

import "sort"

type PublicMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
	Hardcore  bool   `json:"hardcore"`
}

type PublicSubmission struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	DetailHint    string `json:"detailHint,omitempty"`
	SubmitterName string `json:"submitterName,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Revealed      bool   `json:"revealed"`
}

type PublicTheme struct {
	Set        bool     `json:"set"`
	Theme      string   `json:"theme,omitempty"`
	Hints      []string `json:"hints"`
	HintsShown int      `json:"hintsShown"`
	HintsTotal int      `json:"hintsTotal"`
	Revealed   bool     `json:"revealed"`
	SolvedBy   []string `json:"solvedBy"`
	Attempted  bool     `json:"attempted"`
}

// PublicRoom is what one viewer is allowed to see of a room.
type PublicRoom struct {
	Code                  string             `json:"code"`
	Phase                 Phase              `json:"phase"`
	CurrentIndex          int                `json:"currentIndex"`
	Members               []PublicMember     `json:"members"`
	Submissions           []PublicSubmission `json:"submissions"`
	Submitters            []string           `json:"submitters"`
	RevealedSubmissionIDs []string           `json:"revealedSubmissionIds"`
	Theme                 PublicTheme        `json:"theme"`
	ControllerID          string             `json:"controllerId,omitempty"`
	Saved                 bool               `json:"saved"`
	ExpiresAt             int64              `json:"expiresAt"`
	Rules                 Rules              `json:"rules"`
	Privileged            bool               `json:"privileged"`
	MyGuesses             []Guess            `json:"myGuesses,omitempty"`
}

// Project builds viewerID's view of r. Anonymous viewers pass "". Secrets
// (details, the theme phrase, unshown hints, submitters of unrevealed songs,
// other members' guesses, solve positions) stay out unless the viewer is host
// or controller.
func Project(r *Room, viewerID string) PublicRoom {
	priv := r.Privileged(viewerID)

	members := make([]PublicMember, 0, len(r.Members))
	for _, m := range r.OrderedMembers() {
		members = append(members, PublicMember{
			ID:        m.ID,
			Name:      m.Name,
			IsHost:    m.IsHost,
			Connected: m.Connected,
			Hardcore:  m.Hardcore,
		})
	}

	subs := make([]PublicSubmission, 0, len(r.Submissions))
	revealed := make([]string, 0, len(r.RevealedSubmissionIDs))
	names := make([]string, 0, len(r.Submissions))
	for _, s := range r.Submissions {
		ps := PublicSubmission{ID: s.ID, Title: s.Title, DetailHint: s.DetailHint, Revealed: r.RevealedSubmissionIDs[s.ID]}
		if ps.Revealed {
			revealed = append(revealed, s.ID)
		}
		if priv || ps.Revealed {
			ps.SubmitterName = s.SubmitterName
		}
		if priv {
			ps.Detail = s.Detail
		}
		subs = append(subs, ps)
		names = append(names, s.SubmitterName)
	}
	sort.Strings(names)

	view := PublicRoom{
		Code:                  r.Code,
		Phase:                 r.Phase,
		CurrentIndex:          r.CurrentIndex,
		Members:               members,
		Submissions:           subs,
		Submitters:            names,
		RevealedSubmissionIDs: revealed,
		Theme:                 projectTheme(r, viewerID, priv),
		ControllerID:          r.ControllerID,
		Saved:                 r.Saved,
		ExpiresAt:             r.ExpiresAt,
		Rules:                 r.Rules,
		Privileged:            priv,
	}
	if _, ok := r.Members[viewerID]; ok {
		view.MyGuesses = r.MemberGuesses(viewerID)
	}
	return view
}

func projectTheme(r *Room, viewerID string, priv bool) PublicTheme {
	t := r.Theme
	pt := PublicTheme{
		Set:        t.CurrentTheme != "",
		HintsShown: max(0, min(t.HintsShown, len(t.Hints))),
		HintsTotal: len(t.Hints),
		Revealed:   t.Revealed,
		SolvedBy:   make([]string, 0, len(t.SolvedBy)),
		Attempted:  t.AttemptedBy[viewerID],
	}
	for _, s := range t.SolvedBy {
		pt.SolvedBy = append(pt.SolvedBy, s.MemberID)
	}
	switch {
	case priv || t.Revealed:
		pt.Theme = t.CurrentTheme
		pt.Hints = append([]string{}, t.Hints...)
	default:
		pt.Hints = append([]string{}, t.Hints[:pt.HintsShown]...)
	}
	return pt
}
