package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrySolveTheme_OneAttempt(t *testing.T) {
	cases := []struct {
		name        string
		first       string
		wantCorrect bool
	}{
		{name: "exact", first: "Road Trip", wantCorrect: true},
		{name: "case and spacing", first: "  road   TRIP ", wantCorrect: true},
		{name: "accents", first: "Róad Tríp", wantCorrect: true},
		{name: "wrong", first: "Summer", wantCorrect: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := roomWithHost(t)
			require.NoError(t, r.SetTheme("h", "Road Trip", nil))

			res := r.TrySolveTheme("p", tc.first)
			assert.Equal(t, ThemeResult{Correct: tc.wantCorrect, Locked: true}, res)

			again := r.TrySolveTheme("p", "Road Trip")
			assert.Equal(t, ThemeResult{Correct: false, Locked: true}, again)

			if tc.wantCorrect {
				assert.Equal(t, []Solve{{MemberID: "p", AtIndex: 0}}, r.Theme.SolvedBy)
			} else {
				assert.Empty(t, r.Theme.SolvedBy)
			}
		})
	}
}

func TestTrySolveTheme_RecordsIndexInPlay(t *testing.T) {
	r := roomWithHost(t)
	require.NoError(t, r.SetTheme("h", "Road Trip", nil))
	_, err := r.SetIndex("h", 1)
	require.NoError(t, err)

	r.TrySolveTheme("p", "road trip")
	require.Len(t, r.Theme.SolvedBy, 1)
	assert.Equal(t, 1, r.Theme.SolvedBy[0].AtIndex)
}

func TestTrySolveTheme_NoTheme(t *testing.T) {
	r := roomWithHost(t)
	assert.Equal(t, ThemeResult{}, r.TrySolveTheme("p", "anything"))
	assert.False(t, r.Theme.AttemptedBy["p"], "no attempt is spent without a theme")
}

func TestSetTheme_ResetsAttempts(t *testing.T) {
	r := roomWithHost(t)
	require.NoError(t, r.SetTheme("h", "Road Trip", []string{"cars", " ", "maps"}))
	r.TrySolveTheme("p", "road trip")

	require.NoError(t, r.SetTheme("h", "Winter", nil))
	assert.Empty(t, r.Theme.SolvedBy)
	assert.Empty(t, r.Theme.AttemptedBy)
	assert.Equal(t, ThemeResult{Correct: true, Locked: true}, r.TrySolveTheme("p", "winter"))

	assert.ErrorIs(t, r.SetTheme("p", "Mine", nil), ErrNotHost)
}

func TestShowNextHintAndReveal(t *testing.T) {
	r := roomWithHost(t)
	_, err := r.ShowNextHint("h")
	assert.ErrorIs(t, err, ErrNotAllowed, "no theme yet")

	require.NoError(t, r.SetTheme("h", "Road Trip", []string{"cars", "maps"}))
	for want := 1; want <= 3; want++ {
		n, err := r.ShowNextHint("h")
		require.NoError(t, err)
		assert.Equal(t, min(want, 2), n)
	}

	_, err = r.ShowNextHint("p")
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, r.RevealTheme("h"))
	assert.True(t, r.Theme.Revealed)
}
