package engine

import "github.com/greenwinther/guess-the-song2/internal/textnorm"

// SubmitGuess records memberID's answer for a song. Under MaxOneGuessPerSong a
// resubmission overwrites the earlier guess in place. Locked guesses, and
// hardcore guesses for songs already played, cannot change.
func (r *Room) SubmitGuess(memberID string, g Guess, now int64) error {
	m, err := r.member(memberID)
	if err != nil {
		return err
	}
	if err := r.requireGuessing(); err != nil {
		return err
	}
	pos := r.submissionIndex(g.SubmissionID)
	if pos < 0 {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "unknown submission", "submissionId": g.SubmissionID})
	}
	if m.Hardcore && pos < r.CurrentIndex {
		return withDetails(ErrGuessLocked, map[string]any{"reason": "hardcore", "submissionId": g.SubmissionID})
	}

	g.MemberID = memberID
	g.GuessedSubmitterName = cleanText(g.GuessedSubmitterName)
	g.DetailGuess = cleanText(g.DetailGuess)
	g.At = now
	g.LockedAt = 0

	if r.Rules.MaxOneGuessPerSong {
		if i := r.guessIndex(memberID, g.SubmissionID); i >= 0 {
			if r.Guesses[i].Locked() {
				return withDetails(ErrGuessLocked, map[string]any{"submissionId": g.SubmissionID})
			}
			r.Guesses[i] = g
			return nil
		}
	}
	r.Guesses = append(r.Guesses, g)
	return nil
}

// LockGuess finalizes memberID's guess for a song. Locking twice is a no-op.
func (r *Room) LockGuess(memberID, submissionID string, now int64) error {
	if _, err := r.member(memberID); err != nil {
		return err
	}
	if err := r.requireGuessing(); err != nil {
		return err
	}
	found := false
	for i := range r.Guesses {
		g := &r.Guesses[i]
		if g.MemberID == memberID && g.SubmissionID == submissionID {
			found = true
			if !g.Locked() {
				g.LockedAt = now
			}
		}
	}
	if !found {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "no guess to lock", "submissionId": submissionID})
	}
	return nil
}

// LockAllGuesses finalizes every open guess of memberID and reports how many changed.
func (r *Room) LockAllGuesses(memberID string, now int64) (int, error) {
	if _, err := r.member(memberID); err != nil {
		return 0, err
	}
	return r.lockWhere(now, func(g Guess) bool { return g.MemberID == memberID }), nil
}

// LockRoomGuesses finalizes every open guess in the room.
func (r *Room) LockRoomGuesses(callerID string, now int64) (int, error) {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return 0, err
	}
	return r.lockWhere(now, func(Guess) bool { return true }), nil
}

func (r *Room) lockWhere(now int64, match func(Guess) bool) int {
	n := 0
	for i := range r.Guesses {
		if !r.Guesses[i].Locked() && match(r.Guesses[i]) {
			r.Guesses[i].LockedAt = now
			n++
		}
	}
	return n
}

func (r *Room) guessIndex(memberID, submissionID string) int {
	for i := range r.Guesses {
		if r.Guesses[i].MemberID == memberID && r.Guesses[i].SubmissionID == submissionID {
			return i
		}
	}
	return -1
}

// MemberGuesses returns memberID's guesses in submission order.
func (r *Room) MemberGuesses(memberID string) []Guess {
	out := make([]Guess, 0)
	for _, s := range r.Submissions {
		for _, g := range r.Guesses {
			if g.MemberID == memberID && g.SubmissionID == s.ID {
				out = append(out, g)
			}
		}
	}
	return out
}

type SongMember struct {
	MemberID             string `json:"memberId"`
	Name                 string `json:"name"`
	GuessedSubmitterName string `json:"guessedSubmitterName,omitempty"`
}

type SongResults struct {
	SubmissionID         string       `json:"submissionId"`
	CorrectSubmitterName string       `json:"correctSubmitterName"`
	CorrectCount         int          `json:"correctCount"`
	Correct              []SongMember `json:"correct"`
	Incorrect            []SongMember `json:"incorrect"`
}

// SongResultsFor summarizes who guessed a song right. Players only see it once
// the song is revealed or the room reached RESULTS.
func (r *Room) SongResultsFor(callerID, submissionID string) (SongResults, error) {
	if _, err := r.member(callerID); err != nil {
		return SongResults{}, err
	}
	idx := r.submissionIndex(submissionID)
	if idx < 0 {
		return SongResults{}, withDetails(ErrNotAllowed, map[string]any{"reason": "unknown submission", "submissionId": submissionID})
	}
	if !r.Privileged(callerID) && !r.RevealedSubmissionIDs[submissionID] && r.Phase != PhaseResults {
		return SongResults{}, withDetails(ErrNotAllowed, map[string]any{"reason": "not revealed", "submissionId": submissionID})
	}

	sub := r.Submissions[idx]
	res := SongResults{
		SubmissionID:         sub.ID,
		CorrectSubmitterName: sub.SubmitterName,
		Correct:              []SongMember{},
		Incorrect:            []SongMember{},
	}
	want := textnorm.Normalize(sub.SubmitterName)
	for _, g := range r.Guesses {
		if g.SubmissionID != sub.ID {
			continue
		}
		name := ""
		if m, ok := r.Members[g.MemberID]; ok {
			name = m.Name
		}
		if textnorm.Normalize(g.GuessedSubmitterName) == want {
			res.Correct = append(res.Correct, SongMember{MemberID: g.MemberID, Name: name})
		} else {
			res.Incorrect = append(res.Incorrect, SongMember{MemberID: g.MemberID, Name: name, GuessedSubmitterName: g.GuessedSubmitterName})
		}
	}
	res.CorrectCount = len(res.Correct)
	return res, nil
}

// Recap folds SongResultsFor over the playlist in play order, keeping only the
// songs the caller may see.
func (r *Room) Recap(callerID string) ([]SongResults, error) {
	if _, err := r.member(callerID); err != nil {
		return nil, err
	}
	showAll := r.Privileged(callerID) || r.Phase == PhaseResults
	out := []SongResults{}
	for _, s := range r.Submissions {
		if !showAll && !r.RevealedSubmissionIDs[s.ID] {
			continue
		}
		res, err := r.SongResultsFor(callerID, s.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
