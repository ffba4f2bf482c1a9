package person

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

const (
	defaultMaxResults = 50
	contactScanLimit  = 100
	fuzzyPerPrefix    = 10
	fuzzyThreshold    = 0.60
	fuzzyTopN         = 20
)

// fuzzyPrefixes seed the candidate pool when nothing else matched.
var fuzzyPrefixes = []string{"A", "M", "S", "K", "F", "H", "N", "R"}

const (
	strategyExact   = "exact"
	strategyPartial = "partial"
	strategyDomain  = "domain"
	strategyFuzzy   = "fuzzy"
)

// DirectoryAdapter searches the directory with escalating strategies so a person
// that exists is not reported as missing just because an exact resolve failed.
type DirectoryAdapter struct {
	resolver Resolver
	contacts ContactLister
	logger   *slog.Logger
}

// DirectoryOption customizes a DirectoryAdapter.
type DirectoryOption func(*DirectoryAdapter)

// WithDirectoryLogger sets the adapter logger.
func WithDirectoryLogger(logger *slog.Logger) DirectoryOption {
	return func(a *DirectoryAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewDirectoryAdapter creates an adapter; contacts may be nil to skip the contacts scan.
func NewDirectoryAdapter(resolver Resolver, contacts ContactLister, opts ...DirectoryOption) *DirectoryAdapter {
	a := &DirectoryAdapter{resolver: resolver, contacts: contacts, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search returns up to maxResults people matching query in discovery order.
// Strategy failures are logged and never returned.
func (a *DirectoryAdapter) Search(ctx context.Context, query string, maxResults int, fullData bool) []*Person {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	results := newResultSet()

	results.addAll(a.resolveStrategy(ctx, strategyExact, query, fullData), SourceDirectory)
	if results.len() >= maxResults {
		return results.list(maxResults)
	}

	if results.len() == 0 {
		results.addAll(a.searchPartial(ctx, query, fullData), SourceDirectory)
		if results.len() >= maxResults {
			return results.list(maxResults)
		}
	}

	if at := strings.LastIndex(query, "@"); at >= 0 {
		if domain := strings.TrimSpace(query[at+1:]); domain != "" {
			results.addAll(a.searchDomain(ctx, domain, fullData), SourceDirectory)
			if results.len() >= maxResults {
				return results.list(maxResults)
			}
		}
	}

	if results.len() == 0 {
		results.addAll(a.searchFuzzy(ctx, query), SourceFuzzyMatch)
	}
	a.logger.Debug("directory search done", "query", query, "count", results.len())
	return results.list(maxResults)
}

func (a *DirectoryAdapter) searchPartial(ctx context.Context, query string, fullData bool) []*Person {
	if people := a.resolveStrategy(ctx, strategyPartial, query+"*", fullData); len(people) > 0 {
		return people
	}
	if a.contacts == nil {
		return nil
	}
	people, err := scanContacts(ctx, a.contacts, query, a.logger)
	if err != nil {
		strategyRuns.WithLabelValues(strategyPartial, "error").Inc()
		a.logger.Warn("contacts scan failed", "query", query, "error", err)
		return nil
	}
	return people
}

func (a *DirectoryAdapter) searchDomain(ctx context.Context, domain string, fullData bool) []*Person {
	suffix := "@" + strings.ToLower(domain)
	var out []*Person
	for _, p := range a.resolveStrategy(ctx, strategyDomain, "*@"+domain, fullData) {
		if strings.HasSuffix(strings.ToLower(p.PrimaryEmail()), suffix) {
			out = append(out, p)
		}
	}
	return out
}

type scored struct {
	person *Person
	score  float64
}

func (a *DirectoryAdapter) searchFuzzy(ctx context.Context, query string) []*Person {
	if a.resolver == nil {
		return nil
	}
	q := strings.ToLower(query)
	var candidates []scored
	for _, prefix := range fuzzyPrefixes {
		resolutions, err := a.resolver.Resolve(ctx, prefix, false)
		if err != nil {
			strategyRuns.WithLabelValues(strategyFuzzy, "error").Inc()
			a.logger.Debug("fuzzy prefix failed", "prefix", prefix, "error", err)
			continue
		}
		if len(resolutions) > fuzzyPerPrefix {
			resolutions = resolutions[:fuzzyPerPrefix]
		}
		for _, r := range resolutions {
			p, err := FromDirectory(r, false)
			if err != nil {
				a.logger.Debug("skipping fuzzy candidate", "error", err)
				continue
			}
			score := max(similarity(q, strings.ToLower(p.Name)), similarity(q, strings.ToLower(p.PrimaryEmail())))
			if score >= fuzzyThreshold {
				candidates = append(candidates, scored{person: p, score: score})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > fuzzyTopN {
		candidates = candidates[:fuzzyTopN]
	}
	out := make([]*Person, len(candidates))
	for i, c := range candidates {
		out[i] = c.person
	}
	outcome := "miss"
	if len(out) > 0 {
		outcome = "hit"
	}
	strategyRuns.WithLabelValues(strategyFuzzy, outcome).Inc()
	return out
}

// resolveStrategy runs one resolve call and converts its results, skipping malformed entries.
func (a *DirectoryAdapter) resolveStrategy(ctx context.Context, strategy, name string, fullData bool) []*Person {
	if a.resolver == nil {
		return nil
	}
	resolutions, err := a.resolver.Resolve(ctx, name, fullData)
	if err != nil {
		strategyRuns.WithLabelValues(strategy, "error").Inc()
		a.logger.Warn("directory strategy failed", "strategy", strategy, "query", name, "error", err)
		return nil
	}
	people := make([]*Person, 0, len(resolutions))
	for _, r := range resolutions {
		p, err := FromDirectory(r, fullData)
		if err != nil {
			a.logger.Warn("skipping directory entry", "strategy", strategy, "error", err)
			continue
		}
		people = append(people, p)
	}
	outcome := "miss"
	if len(people) > 0 {
		outcome = "hit"
	}
	strategyRuns.WithLabelValues(strategy, outcome).Inc()
	return people
}

// scanContacts returns contacts whose names or first email contain query, case-insensitively.
func scanContacts(ctx context.Context, lister ContactLister, query string, logger *slog.Logger) ([]*Person, error) {
	if lister == nil {
		return nil, errSourceUnavailable
	}
	contacts, err := lister.ListContacts(ctx, contactScanLimit)
	if err != nil {
		return nil, err
	}
	if len(contacts) > contactScanLimit {
		contacts = contacts[:contactScanLimit]
	}
	q := strings.ToLower(query)
	var out []*Person
	for _, c := range contacts {
		if !contactMatches(c, q) {
			continue
		}
		p, err := FromContact(c)
		if err != nil {
			logger.Debug("skipping contact", "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func contactMatches(c ContactInfo, q string) bool {
	fields := []string{c.GivenName, c.Surname, c.DisplayName}
	if len(c.EmailAddresses) > 0 {
		fields = append(fields, c.EmailAddresses[0].Address)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// resultSet is an insertion-ordered map of people keyed by lower-cased primary email.
type resultSet struct {
	order   []string
	byEmail map[string]*Person
}

func newResultSet() *resultSet {
	return &resultSet{byEmail: map[string]*Person{}}
}

func (r *resultSet) len() int { return len(r.order) }

// add folds p into the set, merging on collision, and tags the stored record with tag when set.
func (r *resultSet) add(p *Person, tag Source) {
	key := strings.ToLower(p.PrimaryEmail())
	if key == "" {
		return
	}
	stored, ok := r.byEmail[key]
	if ok {
		stored = stored.MergeWith(p)
	} else {
		stored = p
		r.order = append(r.order, key)
	}
	if tag != "" {
		stored.AddSource(tag)
	}
	r.byEmail[key] = stored
}

func (r *resultSet) addAll(people []*Person, tag Source) {
	for _, p := range people {
		r.add(p, tag)
	}
}

func (r *resultSet) list(limit int) []*Person {
	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Person, n)
	for i := 0; i < n; i++ {
		out[i] = r.byEmail[r.order[i]]
	}
	return out
}
