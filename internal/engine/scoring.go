package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/greenwinther/guess-the-song2/internal/textnorm"
)

type ScoreRow struct {
	MemberID       string  `json:"memberId"`
	CorrectGuesses float64 `json:"correctGuesses"`
	DetailCorrect  float64 `json:"detailCorrect"`
	ThemeBonuses   float64 `json:"themeBonuses"`
	HardcoreBonus  float64 `json:"hardcoreBonus"`
	Total          float64 `json:"total"`
}

type ScoreBoard struct {
	ByMember map[string]ScoreRow `json:"byMember"`
	Ranked   []ScoreRow          `json:"ranked"`
}

// ComputeScores derives the scoreboard from the room's guesses and theme
// solves. It never mutates the room, so repeated calls agree exactly. Every
// member gets a row; ties keep join order.
func ComputeScores(r *Room) ScoreBoard {
	rules := r.Rules.Score
	rows := make(map[string]*ScoreRow, len(r.Members))
	order := make([]string, 0, len(r.Members))
	for _, m := range r.OrderedMembers() {
		rows[m.ID] = &ScoreRow{MemberID: m.ID}
		order = append(order, m.ID)
	}

	subs := make(map[string]*Submission, len(r.Submissions))
	for i := range r.Submissions {
		subs[r.Submissions[i].ID] = &r.Submissions[i]
	}

	for _, g := range r.Guesses {
		sub, ok := subs[g.SubmissionID]
		sr := rows[g.MemberID]
		if !ok || sr == nil {
			continue
		}
		if textnorm.Equal(g.GuessedSubmitterName, sub.SubmitterName) {
			sr.CorrectGuesses += rules.CorrectPerSong
		}
		if sub.Detail != "" && g.DetailGuess != "" && textnorm.Equal(g.DetailGuess, sub.Detail) {
			sr.DetailCorrect += rules.DetailCorrect
		}
	}

	totalSongs := max(1, len(r.Submissions))
	earlyCut := cut(totalSongs, rules.ThemeEarlyPercent)
	midCut := cut(totalSongs, rules.ThemeMidPercent)
	for _, s := range r.Theme.SolvedBy {
		sr := rows[s.MemberID]
		if sr == nil {
			continue
		}
		pos := min(totalSongs, s.AtIndex+1)
		switch {
		case pos <= earlyCut:
			sr.ThemeBonuses += rules.ThemeEarlyPoints
		case pos <= midCut:
			sr.ThemeBonuses += rules.ThemeMidPoints
		default:
			sr.ThemeBonuses += rules.ThemeLatePoints
		}
	}

	for _, id := range order {
		sr := rows[id]
		base := decimal.NewFromFloat(sr.CorrectGuesses).
			Add(decimal.NewFromFloat(sr.DetailCorrect)).
			Add(decimal.NewFromFloat(sr.ThemeBonuses))
		total := base
		if m, ok := r.Members[id]; ok && m.Hardcore {
			total = base.Mul(decimal.NewFromFloat(rules.HardcoreMultiplier)).Round(2)
		}
		sr.Total = total.InexactFloat64()
		sr.HardcoreBonus = total.Sub(base).InexactFloat64()
	}

	board := ScoreBoard{
		ByMember: make(map[string]ScoreRow, len(rows)),
		Ranked:   make([]ScoreRow, 0, len(rows)),
	}
	for _, id := range order {
		board.ByMember[id] = *rows[id]
		board.Ranked = append(board.Ranked, *rows[id])
	}
	sort.SliceStable(board.Ranked, func(i, j int) bool {
		return board.Ranked[i].Total > board.Ranked[j].Total
	})
	return board
}

// cut is ceil(total * pct) computed in decimal so 10 * 0.3 is 3, not 4.
func cut(total int, pct float64) int {
	return int(decimal.NewFromInt(int64(total)).Mul(decimal.NewFromFloat(pct)).Ceil().IntPart())
}
