package person

import (
	"sort"
	"strings"
	"time"
)

// Score computes the relevance of p for query; higher is better.
func Score(p *Person, query string, now time.Time) float64 {
	score := float64(p.SourcePriority())

	q := strings.ToLower(query)
	switch {
	case q == strings.ToLower(p.PrimaryEmail()):
		score += 100
	case strings.Contains(strings.ToLower(p.Name), q):
		score += 50
	}

	if stats := p.CommunicationStats; stats != nil {
		score += float64(min(stats.TotalEmails, 50))
		if stats.LastContact != nil {
			days := daysBetween(*stats.LastContact, now)
			score += min(30, max(0, 30*(1-days/365)))
		}
	}

	if p.IsVIP {
		score += 20
	}

	completeness := 0.0
	for _, v := range []string{p.JobTitle, p.Department, p.Organization} {
		if v != "" {
			completeness += 5
		}
	}
	if len(p.PhoneNumbers) > 0 {
		completeness += 5
	}
	return score + completeness
}

// Rank returns people ordered by descending Score; equal scores keep input order.
func Rank(people []*Person, query string, now time.Time) []*Person {
	entries := make([]scored, len(people))
	for i, p := range people {
		entries[i] = scored{person: p, score: Score(p, query, now)}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })
	out := make([]*Person, len(entries))
	for i, e := range entries {
		out[i] = e.person
	}
	return out
}
