package engine

import "github.com/greenwinther/guess-the-song2/internal/textnorm"

// ThemeResult is the outcome of a theme attempt. Locked is true once the
// member has used their single attempt.
type ThemeResult struct {
	Correct bool `json:"correct"`
	Locked  bool `json:"locked"`
}

// SetTheme installs a new secret phrase and clears every attempt and solve.
// Callable in any phase.
func (r *Room) SetTheme(callerID, theme string, hints []string) error {
	if _, err := r.requireHost(callerID); err != nil {
		return err
	}
	theme = cleanText(theme)
	cleaned := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = cleanText(h); h != "" {
			cleaned = append(cleaned, h)
		}
	}

	r.Theme = ThemeState{
		CurrentTheme:    theme,
		NormalizedTheme: textnorm.Normalize(theme),
		Hints:           cleaned,
		AttemptedBy:     map[string]bool{},
	}
	return nil
}

// ShowNextHint makes one more hint visible and returns how many are shown.
func (r *Room) ShowNextHint(callerID string) (int, error) {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return 0, err
	}
	if r.Theme.CurrentTheme == "" {
		return 0, withDetails(ErrNotAllowed, map[string]any{"reason": "no theme"})
	}
	if r.Theme.HintsShown < len(r.Theme.Hints) {
		r.Theme.HintsShown++
	}
	return r.Theme.HintsShown, nil
}

func (r *Room) RevealTheme(callerID string) error {
	if _, err := r.requireHostOrController(callerID); err != nil {
		return err
	}
	if r.Theme.CurrentTheme == "" {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "no theme"})
	}
	r.Theme.Revealed = true
	r.Theme.HintsShown = len(r.Theme.Hints)
	return nil
}

// TrySolveTheme spends memberID's single attempt. A second attempt always
// reports locked without looking at the text. A correct first attempt is
// recorded with the index of the song in play.
func (r *Room) TrySolveTheme(memberID, guess string) ThemeResult {
	if r.Theme.CurrentTheme == "" {
		return ThemeResult{}
	}
	if r.Theme.AttemptedBy == nil {
		r.Theme.AttemptedBy = map[string]bool{}
	}
	if r.Theme.AttemptedBy[memberID] {
		return ThemeResult{Correct: false, Locked: true}
	}
	r.Theme.AttemptedBy[memberID] = true

	correct := textnorm.Normalize(guess) == r.Theme.NormalizedTheme
	if correct && !r.solved(memberID) {
		r.Theme.SolvedBy = append(r.Theme.SolvedBy, Solve{MemberID: memberID, AtIndex: max(0, r.CurrentIndex)})
	}
	return ThemeResult{Correct: correct, Locked: true}
}

func (r *Room) solved(memberID string) bool {
	for _, s := range r.Theme.SolvedBy {
		if s.MemberID == memberID {
			return true
		}
	}
	return false
}
