// Package scorer implements the pure scoring and ranking functions. No
// I/O; every function is a straightforward transform of its inputs so
// GameEngine can call it synchronously inside a RoomStore mutator.
package scorer

import (
	"math"
	"sort"

	"github.com/emmanuelzz0/queezy/internal/models"
)

// Config carries the point-formula constants, sourced from
// config.GameConfig so deployments can retune without a recompile.
type Config struct {
	BaseScore      int
	StreakStep     int
	StreakCap      int
	TimeMultiplier float64
}

// Default is the standard point-formula tuning.
func Default() Config {
	return Config{BaseScore: 1000, StreakStep: 100, StreakCap: 500, TimeMultiplier: 0.5}
}

// QuestionResult is one player's outcome for a resolved question.
type QuestionResult struct {
	PlayerID     string `json:"playerId"`
	Answer       string `json:"answer,omitempty"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	NewScore     int    `json:"newScore"`
	Streak       int    `json:"streak"`
	TimeElapsed  int64  `json:"timeElapsed"`
}

// LeaderboardEntry is one player's ranked standing.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}

// Points computes the point award for a single player's answer to one
// question. priorStreak is the streak value before this question is
// resolved.
func (c Config) Points(correct bool, elapsedMs int64, timeLimitSec int, priorStreak int) int {
	if !correct {
		return 0
	}

	timeRatio := 1 - float64(elapsedMs)/(float64(timeLimitSec)*1000)
	if timeRatio < 0 {
		timeRatio = 0
	}

	timeBonus := int(math.Floor(float64(c.BaseScore) * timeRatio * c.TimeMultiplier))

	streakBonus := priorStreak * c.StreakStep
	if streakBonus > c.StreakCap {
		streakBonus = c.StreakCap
	}

	return c.BaseScore + timeBonus + streakBonus
}

// ComputeResults returns one QuestionResult per player in the room for
// the given question and the answers submitted for it, sorted by
// pointsEarned descending with ties broken by timeElapsed ascending.
func (c Config) ComputeResults(players []models.Player, question models.Question, answers map[string]models.Answer, questionIndex int) []QuestionResult {
	results := make([]QuestionResult, 0, len(players))

	for _, p := range players {
		ans, ok := answers[models.AnswerKey(p.ID, questionIndex)]

		correct := ok && ans.Choice == question.CorrectAnswer
		var elapsed int64
		var answerStr string
		if ok {
			elapsed = ans.TimeElapsedMs
			answerStr = ans.Choice
		}

		points := c.Points(correct, elapsed, question.TimeLimit, p.Streak)

		streak := 0
		if correct {
			streak = p.Streak + 1
		}

		results = append(results, QuestionResult{
			PlayerID:     p.ID,
			Answer:       answerStr,
			IsCorrect:    correct,
			PointsEarned: points,
			NewScore:     p.Score + points,
			Streak:       streak,
			TimeElapsed:  elapsed,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PointsEarned != results[j].PointsEarned {
			return results[i].PointsEarned > results[j].PointsEarned
		}
		return results[i].TimeElapsed < results[j].TimeElapsed
	})

	return results
}

// Winner returns the index into results of the question winner — the
// highest-pointsEarned correct answer, tie-broken as ComputeResults
// already sorts — or -1 if nobody answered correctly.
func Winner(results []QuestionResult) int {
	for i, r := range results {
		if r.IsCorrect && r.PointsEarned > 0 {
			return i
		}
	}
	return -1
}

// RankLeaderboard sorts players by score descending, ties broken by join
// order then name ascending, with dense ranks (1, 2, 3, ...).
func RankLeaderboard(players []models.Player) []LeaderboardEntry {
	ordered := make([]models.Player, len(players))
	copy(ordered, players)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].Name < ordered[j].Name
	})

	entries := make([]LeaderboardEntry, len(ordered))
	for i, p := range ordered {
		entries[i] = LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
		}
	}
	return entries
}
