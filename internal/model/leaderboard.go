package model

import (
	"sort"
	"time"
)

// LeaderboardEntry is one row of the cached contest ranking snapshot.
type LeaderboardEntry struct {
	Rank       int        `json:"rank"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Score      float64    `json:"score"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RankAttempts orders GRADED attempts and materializes at most topN entries.
// Participants missing from the lookup are skipped rather than ranked blank.
func RankAttempts(attempts []Attempt, participants map[string]Participant, topN int) []LeaderboardEntry {
	sort.SliceStable(attempts, func(i, j int) bool {
		return LessRanked(&attempts[i], &attempts[j])
	})

	entries := make([]LeaderboardEntry, 0, len(attempts))
	for _, a := range attempts {
		p, ok := participants[a.ParticipantID]
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Rank:       len(entries) + 1,
			Name:       p.Name,
			Email:      p.Email,
			Score:      a.TotalScore,
			FinishedAt: a.FinishedAt,
		})
		if topN > 0 && len(entries) >= topN {
			break
		}
	}
	return entries
}

// ContestStatistics is the read-side aggregate recomputed by the sweeper.
type ContestStatistics struct {
	ContestID         string  `json:"contestId"`
	TotalParticipants int     `json:"totalParticipants"`
	TotalSubmissions  int     `json:"totalSubmissions"`
	AverageScore      float64 `json:"averageScore"`
	Ongoing           int     `json:"ongoing"`
	Graded            int     `json:"graded"`
}
