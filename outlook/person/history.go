package person

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

const defaultHistoryEmails = 100

type counterpart struct {
	email string
	name  string
	count int
	first time.Time
	last  time.Time
}

func (c *counterpart) observe(at time.Time) {
	c.count++
	if at.IsZero() {
		return
	}
	if c.first.IsZero() || at.Before(c.first) {
		c.first = at
	}
	if c.last.IsZero() || at.After(c.last) {
		c.last = at
	}
}

// historyMatcher reports whether a counterpart matches the query:
// "@domain" matches the address suffix, anything else is a substring of name or address.
func historyMatcher(query string) func(name, email string) bool {
	q := strings.ToLower(query)
	if strings.HasPrefix(q, "@") {
		return func(_, email string) bool { return strings.HasSuffix(email, q) }
	}
	return func(name, email string) bool {
		return strings.Contains(strings.ToLower(name), q) || strings.Contains(email, q)
	}
}

// searchEmailHistory infers people from inbox senders and sent-item recipients.
// Only the aggregate total is counted per counterpart.
func (s *Service) searchEmailHistory(ctx context.Context, query string, days int, includeStats bool) ([]*Person, error) {
	if s.mailbox == nil {
		return nil, errSourceUnavailable
	}
	since := Now().AddDate(0, 0, -days)
	matches := historyMatcher(query)
	var order []string
	seen := map[string]*counterpart{}
	record := func(m Mailbox, at time.Time) {
		email := strings.ToLower(strings.TrimSpace(m.EmailAddress))
		if email == "" || !matches(m.Name, email) {
			return
		}
		c, ok := seen[email]
		if !ok {
			c = &counterpart{email: email, name: m.Name}
			seen[email] = c
			order = append(order, email)
		}
		c.observe(at)
	}

	inbox, err := s.mailbox.FilterItems(ctx, FolderInbox, since, s.maxHistoryItems)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	for _, item := range capItems(inbox, s.maxHistoryItems) {
		if item.Sender != nil {
			record(*item.Sender, item.Received)
		}
	}

	sent, err := s.mailbox.FilterItems(ctx, FolderSent, since, s.maxHistoryItems)
	if err != nil {
		return nil, fmt.Errorf("scan sent items: %w", err)
	}
	for _, item := range capItems(sent, s.maxHistoryItems) {
		for _, to := range item.ToRecipients {
			record(to, item.Sent)
		}
	}

	people := make([]*Person, 0, len(order))
	for _, email := range order {
		c := seen[email]
		var stats *CommunicationStats
		if includeStats {
			stats = &CommunicationStats{TotalEmails: c.count, FirstContact: timePtr(c.first), LastContact: timePtr(c.last)}
		}
		p, err := FromMailbox(Mailbox{Name: c.name, EmailAddress: c.email}, stats)
		if err != nil {
			s.logger.Debug("skipping history counterpart", "error", err)
			continue
		}
		people = append(people, p)
	}
	s.logger.Debug("email history scanned", "query", query, "inbox", len(inbox), "sent", len(sent), "count", len(people))
	return people, nil
}

// CommunicationHistory counts mail exchanged with one address over the last daysBack days.
func (s *Service) CommunicationHistory(ctx context.Context, email string, daysBack, maxEmails int) (*CommunicationStats, error) {
	target := strings.ToLower(strings.TrimSpace(email))
	if target == "" {
		return nil, ErrInvalidQuery
	}
	if s.mailbox == nil {
		return nil, errSourceUnavailable
	}
	if daysBack <= 0 {
		daysBack = defaultTimeRangeDays
	}
	if maxEmails <= 0 {
		maxEmails = defaultHistoryEmails
	}
	since := Now().AddDate(0, 0, -daysBack)
	var received, sent counterpart

	inbox, err := s.mailbox.FilterItems(ctx, FolderInbox, since, maxEmails)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	for _, item := range capItems(inbox, maxEmails) {
		if item.Sender != nil && strings.EqualFold(strings.TrimSpace(item.Sender.EmailAddress), target) {
			received.observe(item.Received)
		}
	}

	outbox, err := s.mailbox.FilterItems(ctx, FolderSent, since, maxEmails)
	if err != nil {
		return nil, fmt.Errorf("scan sent items: %w", err)
	}
	for _, item := range capItems(outbox, maxEmails) {
		for _, to := range item.ToRecipients {
			if strings.EqualFold(strings.TrimSpace(to.EmailAddress), target) {
				sent.observe(item.Sent)
				break
			}
		}
	}

	stats := &CommunicationStats{
		EmailsReceived: received.count,
		EmailsSent:     sent.count,
		TotalEmails:    received.count + sent.count,
		FirstContact:   timePtr(earliest(received.first, sent.first)),
		LastContact:    timePtr(latest(received.last, sent.last)),
	}
	months := float64(daysBack) / 30
	stats.EmailsPerMonth = math.Round(float64(stats.TotalEmails)/months*10) / 10
	return stats, nil
}

func capItems(items []MailItem, limit int) []MailItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
