package engine

import (
	"strconv"

	"github.com/greenwinther/guess-the-song2/internal/textnorm"
)

// SetPhase is the host's unguarded override: any phase may follow any other.
func (r *Room) SetPhase(callerID string, phase Phase) error {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return err
	}
	if !phase.Valid() {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "unknown phase", "phase": phase})
	}
	r.Phase = phase
	return nil
}

// SetIndex moves the song in play, clamping into the submission range.
func (r *Room) SetIndex(callerID string, index int) (int, error) {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return 0, err
	}
	r.CurrentIndex = r.clampIndex(index)
	return r.CurrentIndex, nil
}

// AddSubmission appends a song to the playlist and returns its id. When s.ID is
// empty the room assigns the next free "s<n>" id.
func (r *Room) AddSubmission(callerID string, s Submission) (string, error) {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return "", err
	}

	s.ID = cleanText(s.ID)
	s.Title = cleanText(s.Title)
	s.SubmitterName = cleanText(s.SubmitterName)
	s.DetailHint = cleanText(s.DetailHint)
	s.Detail = cleanText(s.Detail)

	if s.Title == "" || s.SubmitterName == "" {
		return "", withDetails(ErrNotAllowed, map[string]any{"reason": "title and submitterName are required"})
	}

	wanted := textnorm.Normalize(s.SubmitterName)
	for _, existing := range r.Submissions {
		if textnorm.Normalize(existing.SubmitterName) == wanted {
			return "", withDetails(ErrDupSubmitter, map[string]any{"submissionId": existing.ID})
		}
	}

	if s.ID == "" {
		s.ID = r.nextSubmissionID()
	} else if r.submissionIndex(s.ID) >= 0 {
		return "", withDetails(ErrNotAllowed, map[string]any{"reason": "duplicate id", "submissionId": s.ID})
	}

	r.Submissions = append(r.Submissions, s)
	return s.ID, nil
}

// RemoveSubmission drops a song together with its guesses and reveal flag.
// Removing an unknown id is a no-op and reports false.
func (r *Room) RemoveSubmission(callerID, id string) (bool, error) {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return false, err
	}
	idx := r.submissionIndex(id)
	if idx < 0 {
		return false, nil
	}
	r.Submissions = append(r.Submissions[:idx], r.Submissions[idx+1:]...)

	kept := r.Guesses[:0]
	for _, g := range r.Guesses {
		if g.SubmissionID != id {
			kept = append(kept, g)
		}
	}
	r.Guesses = kept
	delete(r.RevealedSubmissionIDs, id)
	r.CurrentIndex = r.clampIndex(r.CurrentIndex)
	return true, nil
}

// ReorderSubmissions rewrites the play order. orderedIDs must name every
// submission exactly once.
func (r *Room) ReorderSubmissions(callerID string, orderedIDs []string) error {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return err
	}
	if len(orderedIDs) != len(r.Submissions) {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "order length mismatch", "want": len(r.Submissions), "got": len(orderedIDs)})
	}

	byID := make(map[string]Submission, len(r.Submissions))
	for _, s := range r.Submissions {
		byID[s.ID] = s
	}
	reordered := make([]Submission, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		s, ok := byID[id]
		if !ok {
			return withDetails(ErrNotAllowed, map[string]any{"reason": "unknown or repeated submission", "submissionId": id})
		}
		delete(byID, id)
		reordered = append(reordered, s)
	}

	r.Submissions = reordered
	r.CurrentIndex = r.clampIndex(r.CurrentIndex)
	return nil
}

// RevealSubmission shows the correct submitter of a song to everyone.
func (r *Room) RevealSubmission(callerID, id string) error {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return err
	}
	if r.submissionIndex(id) < 0 {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "unknown submission", "submissionId": id})
	}
	r.RevealedSubmissionIDs[id] = true
	return nil
}

func (r *Room) nextSubmissionID() string {
	for n := len(r.Submissions) + 1; ; n++ {
		id := "s" + strconv.Itoa(n)
		if r.submissionIndex(id) < 0 {
			return id
		}
	}
}
