package snapshot

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/ids"
	"github.com/greenwinther/guess-the-song2/internal/textnorm"
)

// Revive rebuilds a room from untrusted JSON. It returns nil only when the
// input is not a JSON object or carries no usable room code. now fills in
// missing timestamps.
func Revive(raw []byte, now int64) *engine.Room {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil
	}

	code := ids.NormalizeCode(str(obj["code"]))
	if !ids.ValidRoomCode(code) {
		return nil
	}

	r := engine.NewRoom(code, str(obj["hostKey"]), now, engine.DefaultTTL)
	if r.HostKey == "" {
		// older snapshots may lack a key
		r.HostKey, _ = ids.NewHostKey()
	}

	if p := engine.Phase(str(obj["phase"])); p.Valid() {
		r.Phase = p
	}
	r.Rules = reviveRules(obj["rules"])
	r.Saved = boolean(obj["saved"])
	reviveTimes(r, obj, now)

	reviveMembers(r, obj["members"])
	reviveSubmissions(r, obj["submissions"])
	r.CurrentIndex = clamp(integer(obj["currentIndex"]), 0, max(0, len(r.Submissions)-1))
	reviveGuesses(r, obj["guesses"])

	for _, id := range stringSet(obj["revealedSubmissionIds"]) {
		if hasSubmission(r, id) {
			r.RevealedSubmissionIDs[id] = true
		}
	}
	r.Theme = reviveTheme(obj["theme"])

	if c := str(obj["controllerId"]); c != "" {
		if _, ok := r.Members[c]; ok {
			r.ControllerID = c
		}
	}
	return r
}

func reviveTimes(r *engine.Room, obj map[string]any, now int64) {
	if v, ok := number(obj["createdAt"]); ok && v > 0 {
		r.CreatedAt = int64(v)
	}
	ttl := engine.DefaultTTL
	if r.Saved {
		ttl = engine.DefaultSavedTTL
	}
	r.ExpiresAt = r.CreatedAt + ttl.Milliseconds()
	if v, ok := number(obj["expiresAt"]); ok && int64(v) > r.CreatedAt {
		r.ExpiresAt = int64(v)
	}
}

func reviveMembers(r *engine.Room, v any) {
	var entries []any
	switch t := v.(type) {
	case []any:
		entries = t
	case map[string]any:
		// keyed by id, as an older writer produced
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if m, ok := t[k].(map[string]any); ok {
				if _, has := m["id"]; !has {
					m["id"] = k
				}
				entries = append(entries, m)
			}
		}
	}

	hostSeen := false
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id := str(m["id"])
		if id == "" {
			continue
		}
		if _, dup := r.Members[id]; dup {
			continue
		}
		name := str(m["name"])
		if name == "" {
			name = "Player"
		}
		member := &engine.Member{
			ID:        id,
			Name:      name,
			IsHost:    boolean(m["isHost"]) && !hostSeen,
			Connected: boolean(m["connected"]),
			Hardcore:  boolean(m["hardcore"]),
		}
		if ls, ok := number(m["lastSeen"]); ok && ls > 0 {
			member.LastSeen = int64(ls)
		}
		hostSeen = hostSeen || member.IsHost
		r.Members[id] = member
		r.JoinOrder = append(r.JoinOrder, id)
	}

	if !hostSeen && len(r.JoinOrder) > 0 {
		r.Members[r.JoinOrder[0]].IsHost = true
	}
}

func reviveSubmissions(r *engine.Room, v any) {
	entries, _ := v.([]any)
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		s := engine.Submission{
			ID:            str(m["id"]),
			Title:         str(m["title"]),
			SubmitterName: str(m["submitterName"]),
			DetailHint:    str(m["detailHint"]),
			Detail:        str(m["detail"]),
		}
		if s.ID == "" || s.Title == "" || s.SubmitterName == "" || hasSubmission(r, s.ID) {
			continue
		}
		r.Submissions = append(r.Submissions, s)
	}
}

func reviveGuesses(r *engine.Room, v any) {
	entries, _ := v.([]any)
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		g := engine.Guess{
			MemberID:             str(m["memberId"]),
			SubmissionID:         str(m["submissionId"]),
			GuessedSubmitterName: str(m["guessedSubmitterName"]),
			DetailGuess:          str(m["detailGuess"]),
		}
		if g.MemberID == "" || g.SubmissionID == "" || g.GuessedSubmitterName == "" {
			continue
		}
		if at, ok := number(m["at"]); ok && at > 0 {
			g.At = int64(at)
		}
		if l, ok := number(m["lockedAt"]); ok && l > 0 {
			g.LockedAt = int64(l)
		}

		if r.Rules.MaxOneGuessPerSong {
			replaced := false
			for i := range r.Guesses {
				if r.Guesses[i].MemberID == g.MemberID && r.Guesses[i].SubmissionID == g.SubmissionID {
					r.Guesses[i] = g
					replaced = true
					break
				}
			}
			if replaced {
				continue
			}
		}
		r.Guesses = append(r.Guesses, g)
	}
}

func reviveTheme(v any) engine.ThemeState {
	t := engine.ThemeState{AttemptedBy: map[string]bool{}}
	m, ok := v.(map[string]any)
	if !ok {
		return t
	}

	t.CurrentTheme = str(m["currentTheme"])
	t.NormalizedTheme = textnorm.Normalize(t.CurrentTheme)
	if hints, ok := m["hints"].([]any); ok {
		for _, h := range hints {
			if s := str(h); s != "" {
				t.Hints = append(t.Hints, s)
			}
		}
	}
	t.HintsShown = clamp(integer(m["hintsShown"]), 0, len(t.Hints))
	t.Revealed = boolean(m["revealed"])

	for _, id := range stringSet(m["attemptedBy"]) {
		t.AttemptedBy[id] = true
	}
	solved := map[string]bool{}
	if list, ok := m["solvedBy"].([]any); ok {
		for _, e := range list {
			s, ok := e.(map[string]any)
			if !ok {
				continue
			}
			id := str(s["memberId"])
			if id == "" || solved[id] {
				continue
			}
			solved[id] = true
			t.SolvedBy = append(t.SolvedBy, engine.Solve{MemberID: id, AtIndex: max(0, integer(s["atIndex"]))})
			// a solve always implies a spent attempt
			t.AttemptedBy[id] = true
		}
	}
	return t
}

func reviveRules(v any) engine.Rules {
	rules := engine.DefaultRules()
	m, ok := v.(map[string]any)
	if !ok {
		return rules
	}
	if b, ok := m["allowGuessingInRecap"].(bool); ok {
		rules.AllowGuessingInRecap = b
	}
	if b, ok := m["maxOneGuessPerSong"].(bool); ok {
		rules.MaxOneGuessPerSong = b
	}

	s, ok := m["score"].(map[string]any)
	if !ok {
		return rules
	}
	fields := []struct {
		key string
		dst *float64
	}{
		{"correctPerSong", &rules.Score.CorrectPerSong},
		{"detailCorrect", &rules.Score.DetailCorrect},
		{"themeEarlyPercent", &rules.Score.ThemeEarlyPercent},
		{"themeMidPercent", &rules.Score.ThemeMidPercent},
		{"themeEarlyPoints", &rules.Score.ThemeEarlyPoints},
		{"themeMidPoints", &rules.Score.ThemeMidPoints},
		{"themeLatePoints", &rules.Score.ThemeLatePoints},
		{"hardcoreMultiplier", &rules.Score.HardcoreMultiplier},
	}
	for _, f := range fields {
		if n, ok := number(s[f.key]); ok && n >= 0 {
			*f.dst = n
		}
	}
	return rules
}

func hasSubmission(r *engine.Room, id string) bool {
	for _, s := range r.Submissions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// stringSet accepts either an array of strings or an object of id -> true.
func stringSet(v any) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			add(str(e))
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k, on := range t {
			if b, ok := on.(bool); ok && b {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func number(v any) (float64, bool) {
	n, ok := v.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func integer(v any) int {
	n, ok := number(v)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return int(n)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
