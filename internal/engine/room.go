package engine

import (
	"sort"
	"strings"
	"time"
)

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseGuessing Phase = "GUESSING"
	PhaseRecap    Phase = "RECAP"
	PhaseResults  Phase = "RESULTS"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseGuessing, PhaseRecap, PhaseResults:
		return true
	}
	return false
}

const (
	DefaultTTL      = 24 * time.Hour
	DefaultSavedTTL = 7 * 24 * time.Hour
)

type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
	Hardcore  bool   `json:"hardcore"`
	LastSeen  int64  `json:"lastSeen,omitempty"`
}

// Submission is one song entry. Detail is secret and only leaves the room
// through privileged projections.
type Submission struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SubmitterName string `json:"submitterName"`
	DetailHint    string `json:"detailHint,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type Guess struct {
	MemberID             string `json:"memberId"`
	SubmissionID         string `json:"submissionId"`
	GuessedSubmitterName string `json:"guessedSubmitterName"`
	DetailGuess          string `json:"detailGuess,omitempty"`
	At                   int64  `json:"at"`
	LockedAt             int64  `json:"lockedAt,omitempty"`
}

func (g Guess) Locked() bool { return g.LockedAt != 0 }

// Solve records who solved the theme and which song was in play at the time.
type Solve struct {
	MemberID string `json:"memberId"`
	AtIndex  int    `json:"atIndex"`
}

type ThemeState struct {
	CurrentTheme    string          // empty means no theme is set
	NormalizedTheme string          // never projected
	Hints           []string        // revealed one by one via HintsShown
	HintsShown      int             // number of hints visible to players
	Revealed        bool            // phrase and every hint visible to all
	SolvedBy        []Solve         // solve order
	AttemptedBy     map[string]bool // one lifetime attempt per member
}

type ScoreRules struct {
	CorrectPerSong     float64 `json:"correctPerSong"`
	DetailCorrect      float64 `json:"detailCorrect"`
	ThemeEarlyPercent  float64 `json:"themeEarlyPercent"`
	ThemeMidPercent    float64 `json:"themeMidPercent"`
	ThemeEarlyPoints   float64 `json:"themeEarlyPoints"`
	ThemeMidPoints     float64 `json:"themeMidPoints"`
	ThemeLatePoints    float64 `json:"themeLatePoints"`
	HardcoreMultiplier float64 `json:"hardcoreMultiplier"`
}

type Rules struct {
	AllowGuessingInRecap bool       `json:"allowGuessingInRecap"`
	MaxOneGuessPerSong   bool       `json:"maxOneGuessPerSong"`
	Score                ScoreRules `json:"score"`
}

func DefaultRules() Rules {
	return Rules{
		AllowGuessingInRecap: true,
		MaxOneGuessPerSong:   true,
		Score: ScoreRules{
			CorrectPerSong:     1,
			DetailCorrect:      1,
			ThemeEarlyPercent:  0.2,
			ThemeMidPercent:    0.5,
			ThemeEarlyPoints:   3,
			ThemeMidPoints:     2,
			ThemeLatePoints:    1,
			HardcoreMultiplier: 1.5,
		},
	}
}

// Room is one game session. A Room is not safe for concurrent use; its owning
// lobby serializes every access.
type Room struct {
	Code         string
	Phase        Phase
	CurrentIndex int

	Members   map[string]*Member
	JoinOrder []string

	Submissions           []Submission
	Guesses               []Guess
	RevealedSubmissionIDs map[string]bool
	Theme                 ThemeState
	Rules                 Rules

	ControllerID string
	HostKey      string

	CreatedAt int64
	ExpiresAt int64
	Saved     bool
}

// NewRoom builds an empty LOBBY room. code must already be validated.
func NewRoom(code, hostKey string, now int64, ttl time.Duration) *Room {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Room{
		Code:                  code,
		Phase:                 PhaseLobby,
		Members:               map[string]*Member{},
		RevealedSubmissionIDs: map[string]bool{},
		Theme:                 ThemeState{AttemptedBy: map[string]bool{}},
		Rules:                 DefaultRules(),
		HostKey:               hostKey,
		CreatedAt:             now,
		ExpiresAt:             now + ttl.Milliseconds(),
	}
}

// OrderedMembers returns members in join order. Members missing from JoinOrder
// (only possible for hand-built rooms) follow, sorted by id.
func (r *Room) OrderedMembers() []*Member {
	out := make([]*Member, 0, len(r.Members))
	seen := make(map[string]bool, len(r.Members))
	for _, id := range r.JoinOrder {
		if m, ok := r.Members[id]; ok && !seen[id] {
			out = append(out, m)
			seen[id] = true
		}
	}
	if len(out) == len(r.Members) {
		return out
	}
	rest := make([]string, 0)
	for id := range r.Members {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, r.Members[id])
	}
	return out
}

func (r *Room) addMember(m *Member) {
	r.Members[m.ID] = m
	r.JoinOrder = append(r.JoinOrder, m.ID)
}

func (r *Room) member(id string) (*Member, error) {
	if id == "" {
		return nil, ErrNoMember
	}
	m, ok := r.Members[id]
	if !ok {
		return nil, ErrNoMember
	}
	return m, nil
}

// Host returns the member currently holding host, connected or not.
func (r *Room) Host() *Member {
	for _, m := range r.OrderedMembers() {
		if m.IsHost {
			return m
		}
	}
	return nil
}

// Privileged reports whether id may see secrets (host or controller).
func (r *Room) Privileged(id string) bool {
	if id == "" {
		return false
	}
	if m, ok := r.Members[id]; ok && m.IsHost {
		return true
	}
	return r.ControllerID != "" && r.ControllerID == id
}

func (r *Room) requireHost(id string) (*Member, error) {
	m, err := r.member(id)
	if err != nil {
		return nil, err
	}
	if !m.IsHost {
		return nil, ErrNotHost
	}
	return m, nil
}

func (r *Room) requireHostOrController(id string) (*Member, error) {
	m, err := r.member(id)
	if err != nil {
		return nil, err
	}
	if !r.Privileged(id) {
		return nil, ErrNotHost
	}
	return m, nil
}

// AllowGuessing reports whether guesses are accepted in the current phase.
func (r *Room) AllowGuessing() bool {
	return r.Phase == PhaseGuessing || (r.Phase == PhaseRecap && r.Rules.AllowGuessingInRecap)
}

func (r *Room) requireGuessing() error {
	if r.AllowGuessing() {
		return nil
	}
	allowed := []Phase{PhaseGuessing}
	if r.Rules.AllowGuessingInRecap {
		allowed = append(allowed, PhaseRecap)
	}
	return withDetails(ErrPhaseLocked, map[string]any{"phase": r.Phase, "allowed": allowed})
}

func (r *Room) clampIndex(i int) int {
	last := len(r.Submissions) - 1
	if i > last {
		i = last
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (r *Room) submissionIndex(id string) int {
	for i := range r.Submissions {
		if r.Submissions[i].ID == id {
			return i
		}
	}
	return -1
}

// Expired reports whether the room's TTL elapsed before now.
func (r *Room) Expired(now int64) bool {
	return r.ExpiresAt < now
}

func (r *Room) extend(now int64, ttl time.Duration) {
	exp := now + ttl.Milliseconds()
	if exp <= r.CreatedAt {
		exp = r.CreatedAt + 1
	}
	r.ExpiresAt = exp
}

// MarkSaved extends the room to the saved TTL counted from now.
func (r *Room) MarkSaved(now int64, ttl time.Duration) {
	r.Saved = true
	r.extend(now, ttl)
}

// MarkUnsaved restores the short TTL counted from now.
func (r *Room) MarkUnsaved(now int64, ttl time.Duration) {
	r.Saved = false
	r.extend(now, ttl)
}

// ResetPresence marks every member disconnected. Used after a restart, when no
// connection survives. Host flags are kept so the first host to return keeps it.
func (r *Room) ResetPresence() {
	for _, m := range r.Members {
		m.Connected = false
	}
}

func cleanText(s string) string {
	return strings.TrimSpace(s)
}
