package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow int64 = 1_700_000_000_000

func newTestRoom() *Room {
	return NewRoom("K7X3QZ", "hk_secret", testNow, DefaultTTL)
}

// roomWithHost returns a room with host "h" and player "p" in GUESSING with two songs.
func roomWithHost(t *testing.T) *Room {
	t.Helper()
	r := newTestRoom()
	r.Join("Host", "h", testNow)
	r.Join("Player", "p", testNow)
	_, err := r.AddSubmission("h", Submission{ID: "1", Title: "A", SubmitterName: "Sammy", Detail: "2010"})
	require.NoError(t, err)
	_, err = r.AddSubmission("h", Submission{ID: "2", Title: "B", SubmitterName: "Alex", Detail: "128"})
	require.NoError(t, err)
	require.NoError(t, r.SetPhase("h", PhaseGuessing))
	return r
}

func connectedHosts(r *Room) int {
	n := 0
	for _, m := range r.Members {
		if m.IsHost && m.Connected {
			n++
		}
	}
	return n
}

func anyConnected(r *Room) bool {
	for _, m := range r.Members {
		if m.Connected {
			return true
		}
	}
	return false
}

func TestNewRoom_Defaults(t *testing.T) {
	r := newTestRoom()
	assert.Equal(t, PhaseLobby, r.Phase)
	assert.Equal(t, 0, r.CurrentIndex)
	assert.Empty(t, r.Members)
	assert.Equal(t, testNow+DefaultTTL.Milliseconds(), r.ExpiresAt)
	assert.Greater(t, r.ExpiresAt, r.CreatedAt)
	assert.True(t, r.Rules.MaxOneGuessPerSong)
	assert.True(t, r.Rules.AllowGuessingInRecap)
}

func TestJoin_FirstMemberIsHost(t *testing.T) {
	r := newTestRoom()
	first := r.Join("Dennis", "", testNow)
	second := r.Join("Luxx", "", testNow)

	assert.True(t, first.IsHost)
	assert.False(t, second.IsHost)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{first.ID, second.ID}, r.JoinOrder)
}

func TestJoin_RejoinIsIdempotent(t *testing.T) {
	r := newTestRoom()
	a := r.Join("Dennis", "m1", testNow)
	require.NoError(t, r.MarkDisconnected("m1", testNow+1))
	b := r.Join("Dennis", "m1", testNow+2)
	c := r.Join("", "m1", testNow+3)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.ID, c.ID)
	assert.Len(t, r.Members, 1)
	assert.Len(t, r.JoinOrder, 1)
	assert.True(t, c.Connected)
	assert.Equal(t, "Dennis", c.Name, "empty name keeps the old one")
}

func TestMarkDisconnected_HandsHostToConnectedMember(t *testing.T) {
	r := newTestRoom()
	r.Join("Host", "h", testNow)
	r.Join("P1", "p1", testNow)
	r.Join("P2", "p2", testNow)

	require.NoError(t, r.MarkDisconnected("h", testNow))

	assert.False(t, r.Members["h"].IsHost)
	assert.True(t, r.Members["p1"].IsHost, "first connected member in join order takes host")
	assert.Equal(t, 1, connectedHosts(r))
}

func TestMarkDisconnected_SoleHostRetainsHost(t *testing.T) {
	r := newTestRoom()
	r.Join("Host", "h", testNow)

	require.NoError(t, r.MarkDisconnected("h", testNow))
	assert.True(t, r.Members["h"].IsHost)
	assert.False(t, r.Members["h"].Connected)

	r.Join("Host", "h", testNow+10)
	assert.True(t, r.Members["h"].IsHost)
	assert.Equal(t, 1, connectedHosts(r))
}

func TestMarkDisconnected_UnknownMember(t *testing.T) {
	r := newTestRoom()
	assert.ErrorIs(t, r.MarkDisconnected("ghost", testNow), ErrNoMember)
}

func TestSingleHostInvariant_AcrossSequences(t *testing.T) {
	type step struct {
		op     string
		id     string
		target string
	}
	cases := []struct {
		name  string
		steps []step
	}{
		{
			name: "host drops alone then another joins",
			steps: []step{
				{op: "join", id: "a"}, {op: "drop", id: "a"}, {op: "join", id: "b"}, {op: "join", id: "a"},
			},
		},
		{
			name: "everyone drops and comes back in reverse",
			steps: []step{
				{op: "join", id: "a"}, {op: "join", id: "b"}, {op: "join", id: "c"},
				{op: "drop", id: "a"}, {op: "drop", id: "b"}, {op: "drop", id: "c"},
				{op: "join", id: "c"}, {op: "join", id: "b"}, {op: "join", id: "a"},
			},
		},
		{
			name: "assign then drop new host",
			steps: []step{
				{op: "join", id: "a"}, {op: "join", id: "b"}, {op: "assign", id: "a", target: "b"},
				{op: "drop", id: "b"}, {op: "join", id: "b"}, {op: "assign", id: "b", target: "a"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRoom()
			for i, s := range tc.steps {
				switch s.op {
				case "join":
					r.Join(s.id, s.id, testNow)
				case "drop":
					require.NoError(t, r.MarkDisconnected(s.id, testNow))
				case "assign":
					_ = r.AssignHost(s.id, s.target)
				}
				if anyConnected(r) && connectedHosts(r) != 1 {
					t.Fatalf("after step %d (%s %s): want exactly one connected host, got %d", i, s.op, s.id, connectedHosts(r))
				}
				if connectedHosts(r) > 1 {
					t.Fatalf("after step %d: more than one connected host", i)
				}
			}
		})
	}
}

func TestAssignHost(t *testing.T) {
	cases := []struct {
		name    string
		by      string
		target  string
		prepare func(r *Room)
		wantErr error
	}{
		{name: "host assigns player", by: "h", target: "p"},
		{name: "player cannot assign", by: "p", target: "h", wantErr: ErrNotHost},
		{name: "unknown target", by: "h", target: "ghost", wantErr: ErrNoSuchMember},
		{
			name: "disconnected target", by: "h", target: "p",
			prepare: func(r *Room) { _ = r.MarkDisconnected("p", testNow) },
			wantErr: ErrAssignFailed,
		},
		{name: "unknown caller", by: "ghost", target: "p", wantErr: ErrNoMember},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRoom()
			r.Join("Host", "h", testNow)
			r.Join("Player", "p", testNow)
			if tc.prepare != nil {
				tc.prepare(r)
			}

			err := r.AssignHost(tc.by, tc.target)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				assert.True(t, r.Members["h"].IsHost, "failed assign must not move host")
				return
			}
			require.NoError(t, err)
			assert.True(t, r.Members[tc.target].IsHost)
			assert.False(t, r.Members[tc.by].IsHost)
		})
	}
}

func TestSetPhase_IsHostOverride(t *testing.T) {
	r := roomWithHost(t)

	require.NoError(t, r.SetPhase("h", PhaseResults))
	require.NoError(t, r.SetPhase("h", PhaseLobby), "host may jump backwards")
	assert.ErrorIs(t, r.SetPhase("p", PhaseGuessing), ErrNotHost)
	assert.ErrorIs(t, r.SetPhase("h", Phase("PARTY")), ErrNotAllowed)
	assert.Equal(t, PhaseLobby, r.Phase)
}

func TestSetIndex_Clamps(t *testing.T) {
	r := roomWithHost(t)

	cases := []struct {
		in   int
		want int
	}{
		{in: 1, want: 1},
		{in: 7, want: 1},
		{in: -3, want: 0},
	}
	for _, tc := range cases {
		got, err := r.SetIndex("h", tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.want, r.CurrentIndex)
	}

	empty := newTestRoom()
	empty.Join("Host", "h", testNow)
	got, err := empty.SetIndex("h", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestController_GetsHostEquivalentControl(t *testing.T) {
	r := roomWithHost(t)

	assert.ErrorIs(t, r.ClaimController("p", "wrong"), ErrNotAllowed)
	require.NoError(t, r.ClaimController("p", "hk_secret"))

	idx, err := r.SetIndex("p", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.False(t, r.Members["p"].IsHost, "controller is distinct from host")

	assert.ErrorIs(t, r.ReleaseController("h"), ErrNotController)
	require.NoError(t, r.ReleaseController("p"))
	_, err = r.SetIndex("p", 0)
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestReclaimHost(t *testing.T) {
	r := roomWithHost(t)
	assert.ErrorIs(t, r.ReclaimHost("p", ""), ErrNotAllowed)
	require.NoError(t, r.ReclaimHost("p", "hk_secret"))
	assert.True(t, r.Members["p"].IsHost)
	assert.False(t, r.Members["h"].IsHost)
}

func TestAddSubmission_DuplicateSubmitterRejected(t *testing.T) {
	cases := []string{"Sammy", "sammy", "  SAMMY ", "Sámmy"}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			r := roomWithHost(t)
			before := append([]Submission{}, r.Submissions...)

			_, err := r.AddSubmission("h", Submission{Title: "C", SubmitterName: name})
			require.ErrorIs(t, err, ErrDupSubmitter)
			assert.Equal(t, before, r.Submissions)
		})
	}
}

func TestAddSubmission_AssignsIDAndRequiresPrivilege(t *testing.T) {
	r := roomWithHost(t)

	id, err := r.AddSubmission("h", Submission{Title: "C", SubmitterName: "Robin"})
	require.NoError(t, err)
	assert.Equal(t, "s3", id)

	_, err = r.AddSubmission("p", Submission{Title: "D", SubmitterName: "Kim"})
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = r.AddSubmission("h", Submission{ID: "1", Title: "D", SubmitterName: "Kim"})
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = r.AddSubmission("h", Submission{Title: " ", SubmitterName: "Kim"})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestRemoveSubmission(t *testing.T) {
	r := roomWithHost(t)
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "2", GuessedSubmitterName: "Alex"}, testNow))
	require.NoError(t, r.RevealSubmission("h", "2"))
	_, err := r.SetIndex("h", 1)
	require.NoError(t, err)

	removed, err := r.RemoveSubmission("h", "2")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Len(t, r.Submissions, 1)
	assert.Empty(t, r.Guesses)
	assert.False(t, r.RevealedSubmissionIDs["2"])
	assert.Equal(t, 0, r.CurrentIndex)

	removed, err = r.RemoveSubmission("h", "nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSubmitGuess_PhaseGating(t *testing.T) {
	cases := []struct {
		name         string
		phase        Phase
		allowInRecap bool
		wantErr      error
	}{
		{name: "lobby", phase: PhaseLobby, allowInRecap: true, wantErr: ErrPhaseLocked},
		{name: "guessing", phase: PhaseGuessing, allowInRecap: false},
		{name: "recap allowed", phase: PhaseRecap, allowInRecap: true},
		{name: "recap disallowed", phase: PhaseRecap, allowInRecap: false, wantErr: ErrPhaseLocked},
		{name: "results", phase: PhaseResults, allowInRecap: true, wantErr: ErrPhaseLocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := roomWithHost(t)
			r.Rules.AllowGuessingInRecap = tc.allowInRecap
			r.Phase = tc.phase

			err := r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, r.Guesses)
				code, details := CodeOf(err)
				assert.Equal(t, ErrPhaseLocked, code)
				assert.NotNil(t, details)
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.Guesses, 1)
		})
	}
}

func TestSubmitGuess_OneGuessPerSong(t *testing.T) {
	r := roomWithHost(t)

	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Alex", DetailGuess: "1999"}, testNow))
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy", DetailGuess: "2010"}, testNow+5))

	require.Len(t, r.Guesses, 1)
	g := r.Guesses[0]
	assert.Equal(t, "Sammy", g.GuessedSubmitterName)
	assert.Equal(t, "2010", g.DetailGuess)
	assert.Equal(t, testNow+5, g.At)
	assert.Equal(t, "p", g.MemberID)
}

func TestSubmitGuess_AppendsWhenRuleOff(t *testing.T) {
	r := roomWithHost(t)
	r.Rules.MaxOneGuessPerSong = false

	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Alex"}, testNow))
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow))
	assert.Len(t, r.Guesses, 2)
}

func TestSubmitGuess_Locks(t *testing.T) {
	t.Run("locked guess cannot change", func(t *testing.T) {
		r := roomWithHost(t)
		require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Alex"}, testNow))
		require.NoError(t, r.LockGuess("p", "1", testNow+1))
		require.NoError(t, r.LockGuess("p", "1", testNow+2), "locking twice is a no-op")
		assert.Equal(t, testNow+1, r.Guesses[0].LockedAt)

		err := r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow+3)
		assert.ErrorIs(t, err, ErrGuessLocked)
		assert.Equal(t, "Alex", r.Guesses[0].GuessedSubmitterName)
	})

	t.Run("nothing to lock", func(t *testing.T) {
		r := roomWithHost(t)
		assert.ErrorIs(t, r.LockGuess("p", "1", testNow), ErrNotAllowed)
	})

	t.Run("hardcore cannot touch played songs", func(t *testing.T) {
		r := roomWithHost(t)
		require.NoError(t, r.SetHardcore("p", true))
		_, err := r.SetIndex("h", 1)
		require.NoError(t, err)

		err = r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow)
		assert.ErrorIs(t, err, ErrGuessLocked)
		require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "2", GuessedSubmitterName: "Alex"}, testNow))
	})

	t.Run("lock all and lock room", func(t *testing.T) {
		r := roomWithHost(t)
		require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow))
		require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "2", GuessedSubmitterName: "Alex"}, testNow))
		require.NoError(t, r.SubmitGuess("h", Guess{SubmissionID: "2", GuessedSubmitterName: "Alex"}, testNow))

		n, err := r.LockAllGuesses("p", testNow)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = r.LockRoomGuesses("p", testNow)
		assert.ErrorIs(t, err, ErrNotHost)

		n, err = r.LockRoomGuesses("h", testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestSubmitGuess_UnknownMemberOrSong(t *testing.T) {
	r := roomWithHost(t)
	assert.ErrorIs(t, r.SubmitGuess("ghost", Guess{SubmissionID: "1"}, testNow), ErrNoMember)
	assert.ErrorIs(t, r.SubmitGuess("p", Guess{SubmissionID: "9"}, testNow), ErrNotAllowed)
	assert.Empty(t, r.Guesses)
}

func TestSaveUnsave_TTL(t *testing.T) {
	r := newTestRoom()
	r.MarkSaved(testNow+1000, DefaultSavedTTL)
	assert.True(t, r.Saved)
	assert.Equal(t, testNow+1000+DefaultSavedTTL.Milliseconds(), r.ExpiresAt)

	r.MarkUnsaved(testNow+2000, DefaultTTL)
	assert.False(t, r.Saved)
	assert.Equal(t, testNow+2000+DefaultTTL.Milliseconds(), r.ExpiresAt)

	r.MarkUnsaved(testNow, -48*time.Hour)
	assert.Greater(t, r.ExpiresAt, r.CreatedAt)
}

func TestSongResultsFor(t *testing.T) {
	r := roomWithHost(t)
	r.Join("Third", "q", testNow)
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "sammy"}, testNow))
	require.NoError(t, r.SubmitGuess("q", Guess{SubmissionID: "1", GuessedSubmitterName: "Alex"}, testNow))

	_, err := r.SongResultsFor("p", "1")
	assert.ErrorIs(t, err, ErrNotAllowed, "players wait for the reveal")

	require.NoError(t, r.RevealSubmission("h", "1"))
	res, err := r.SongResultsFor("p", "1")
	require.NoError(t, err)
	assert.Equal(t, "Sammy", res.CorrectSubmitterName)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, "p", res.Correct[0].MemberID)
	require.Len(t, res.Incorrect, 1)
	assert.Equal(t, "Alex", res.Incorrect[0].GuessedSubmitterName)
}

func TestReorderSubmissions(t *testing.T) {
	cases := []struct {
		name    string
		caller  string
		order   []string
		wantErr error
		want    []string
	}{
		{name: "swap", caller: "h", order: []string{"2", "1"}, want: []string{"2", "1"}},
		{name: "same order", caller: "h", order: []string{"1", "2"}, want: []string{"1", "2"}},
		{name: "player", caller: "p", order: []string{"2", "1"}, wantErr: ErrNotHost},
		{name: "too short", caller: "h", order: []string{"2"}, wantErr: ErrNotAllowed},
		{name: "too long", caller: "h", order: []string{"2", "1", "3"}, wantErr: ErrNotAllowed},
		{name: "repeated id", caller: "h", order: []string{"1", "1"}, wantErr: ErrNotAllowed},
		{name: "unknown id", caller: "h", order: []string{"1", "9"}, wantErr: ErrNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := roomWithHost(t)
			_, err := r.SetIndex("h", 1)
			require.NoError(t, err)

			err = r.ReorderSubmissions(tc.caller, tc.order)
			got := make([]string, 0, len(r.Submissions))
			for _, s := range r.Submissions {
				got = append(got, s.ID)
			}
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, []string{"1", "2"}, got, "order untouched on error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 1, r.CurrentIndex)
		})
	}
}

func TestRecap(t *testing.T) {
	r := roomWithHost(t)
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "1", GuessedSubmitterName: "Sammy"}, testNow))
	require.NoError(t, r.SubmitGuess("p", Guess{SubmissionID: "2", GuessedSubmitterName: "Sammy"}, testNow))

	recap, err := r.Recap("p")
	require.NoError(t, err)
	assert.Empty(t, recap, "nothing revealed yet")

	require.NoError(t, r.RevealSubmission("h", "2"))
	recap, err = r.Recap("p")
	require.NoError(t, err)
	require.Len(t, recap, 1)
	assert.Equal(t, "2", recap[0].SubmissionID)
	assert.Equal(t, 0, recap[0].CorrectCount)

	hostRecap, err := r.Recap("h")
	require.NoError(t, err)
	require.Len(t, hostRecap, 2)
	assert.Equal(t, "1", hostRecap[0].SubmissionID)
	assert.Equal(t, 1, hostRecap[0].CorrectCount)
	assert.Equal(t, "p", hostRecap[0].Correct[0].MemberID)

	require.NoError(t, r.SetPhase("h", PhaseResults))
	recap, err = r.Recap("p")
	require.NoError(t, err)
	assert.Len(t, recap, 2)

	_, err = r.Recap("ghost")
	assert.ErrorIs(t, err, ErrNoMember)
}

func TestActionKinds_AreDistinct(t *testing.T) {
	actions := []Action{
		JoinRoom{Name: "x"}, Disconnect{}, AssignHost{}, ReclaimHost{}, ClaimController{},
		ReleaseController{}, SetHardcore{}, Rename{Name: "x"}, AddSubmission{}, RemoveSubmission{},
		ReorderSubmissions{}, SetPhase{}, SetIndex{}, SubmitGuess{}, LockGuess{}, LockAllGuesses{},
		LockRoomGuesses{}, RevealSubmission{}, SetTheme{}, ShowHint{}, RevealTheme{}, GuessTheme{},
		ComputeScoresAction{}, GetSongResults{}, GetRecap{}, SaveRoom{}, UnsaveRoom{}, GetState{},
	}
	seen := map[string]bool{}
	for _, a := range actions {
		assert.False(t, seen[a.Kind()], "duplicate kind %q", a.Kind())
		seen[a.Kind()] = true
	}
	assert.Equal(t, "room:join", JoinRoom{Name: "Pat"}.Kind())
	assert.Equal(t, "player:rename", Rename{Name: "Pat"}.Kind())
}

func TestApply_ReorderAndRecap(t *testing.T) {
	r := roomWithHost(t)
	env := Env{Now: testNow}

	out, err := Apply(r, env, "h", ReorderSubmissions{OrderedIDs: []string{"2", "1"}})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "2", r.Submissions[0].ID)

	_, err = Apply(r, env, "h", ReorderSubmissions{OrderedIDs: []string{"2"}})
	assert.ErrorIs(t, err, ErrNotAllowed)

	out, err = Apply(r, env, "h", GetRecap{})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	recap, ok := out.Reply["recap"].([]SongResults)
	require.True(t, ok)
	require.Len(t, recap, 2)
	assert.Equal(t, "2", recap[0].SubmissionID)
}

func TestApply_DispatchesAndReportsOutcome(t *testing.T) {
	r := newTestRoom()
	env := Env{Now: testNow}

	out, err := Apply(r, env, "", JoinRoom{Name: "Host", MemberID: "h"})
	require.NoError(t, err)
	assert.Equal(t, "h", out.MemberID)
	assert.True(t, out.Changed)
	assert.Contains(t, out.Reply, "room")

	_, err = Apply(r, env, "", JoinRoom{Name: "Player", MemberID: "p"})
	require.NoError(t, err)

	out, err = Apply(r, env, "h", AddSubmission{Title: "A", SubmitterName: "Sammy"})
	require.NoError(t, err)
	assert.Equal(t, "s1", out.Reply["id"])

	_, err = Apply(r, env, "p", AddSubmission{Title: "B", SubmitterName: "Alex"})
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = Apply(r, env, "p", SubmitGuess{SubmissionID: "s1", GuessedSubmitterName: "Sammy"})
	assert.ErrorIs(t, err, ErrPhaseLocked)

	_, err = Apply(r, env, "h", SetPhase{Phase: PhaseGuessing})
	require.NoError(t, err)

	out, err = Apply(r, env, "p", SubmitGuess{SubmissionID: "s1", GuessedSubmitterName: "Sammy"})
	require.NoError(t, err)
	assert.False(t, out.Changed, "guesses are private")

	out, err = Apply(r, env, "p", ComputeScoresAction{})
	require.NoError(t, err)
	require.NotNil(t, out.Scores)
	assert.Equal(t, 1.0, out.Scores.ByMember["p"].Total)

	out, err = Apply(r, env, "h", SaveRoom{})
	require.NoError(t, err)
	assert.Equal(t, true, out.Reply["saved"])
	assert.Equal(t, testNow+DefaultSavedTTL.Milliseconds(), r.ExpiresAt)

	_, err = Apply(r, env, "ghost", Rename{Name: "x"})
	assert.ErrorIs(t, err, ErrNoMember)
}

func TestApply_ThemeGuessLockedOnSecondAttempt(t *testing.T) {
	r := roomWithHost(t)
	env := Env{Now: testNow}
	_, err := Apply(r, env, "h", SetTheme{Theme: "Animals", Hints: []string{"fur"}})
	require.NoError(t, err)

	out, err := Apply(r, env, "p", GuessTheme{Guess: "animals"})
	require.NoError(t, err)
	assert.Equal(t, true, out.Reply["correct"])
	assert.Equal(t, true, out.Reply["locked"])

	_, err = Apply(r, env, "p", GuessTheme{Guess: "animals"})
	require.ErrorIs(t, err, ErrThemeLocked)
	_, details := CodeOf(err)
	assert.Equal(t, ThemeResult{Correct: false, Locked: true}, details)
	assert.Len(t, r.Theme.SolvedBy, 1)
}

func TestApply_UnknownAction(t *testing.T) {
	r := newTestRoom()
	_, err := Apply(r, Env{Now: testNow}, "", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestCodeOf(t *testing.T) {
	code, details := CodeOf(ErrNotHost)
	assert.Equal(t, ErrNotHost, code)
	assert.Nil(t, details)

	code, details = CodeOf(withDetails(ErrPhaseLocked, "x"))
	assert.Equal(t, ErrPhaseLocked, code)
	assert.Equal(t, "x", details)

	code, _ = CodeOf(errors.New("disk on fire"))
	assert.Equal(t, ErrInternal, code)
}
