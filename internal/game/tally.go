package game

import "sort"

// ScoreFunc turns the number of votes an answer received into round points
// for its author. The default awards one point per vote.
type ScoreFunc func(votes int) int

func VotesAsPoints(votes int) int { return votes }

// tallyRound computes per-author round points from the ledger's vote
// counts. It is a pure function of the ledger contents, so re-running it
// on the same votes always yields the same result.
func tallyRound(l *ledger, score ScoreFunc) map[string]int {
	points := make(map[string]int)
	for answerID, count := range l.voteCounts {
		a, ok := l.answers[answerID]
		if !ok {
			continue
		}
		points[a.AuthorID] += score(count)
	}
	return points
}

// buildLeaderboard orders cumulative scores descending, breaking ties by
// earliest join time. Every roster member appears, including zero scores.
func buildLeaderboard(scores map[string]int, roster []*Participant) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(roster))
	joinIx := make(map[string]int, len(roster))
	for i, p := range roster {
		joinIx[p.ID] = i
		entries = append(entries, LeaderboardEntry{
			UserID:   p.ID,
			Username: p.Username,
			Score:    scores[p.ID],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return joinIx[entries[i].UserID] < joinIx[entries[j].UserID]
	})
	return entries
}
