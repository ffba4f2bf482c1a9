package person

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName = "github.com/viant/exchange-mcp/outlook/person"

	directoryCachePrefix   = "directory_search:"
	defaultDirectoryTTL    = time.Hour
	defaultTimeRangeDays   = 365
	defaultMaxHistoryItems = 2000
)

// FindOptions controls a person lookup. Use NewFindOptions for defaults.
type FindOptions struct {
	Query         string
	Sources       []Source
	IncludeStats  bool
	TimeRangeDays int
	MaxResults    int
}

// NewFindOptions returns options searching every source with stats over the last year.
func NewFindOptions(query string) FindOptions {
	return FindOptions{
		Query:         query,
		Sources:       AllSources,
		IncludeStats:  true,
		TimeRangeDays: defaultTimeRangeDays,
		MaxResults:    defaultMaxResults,
	}
}

func (o FindOptions) normalized() FindOptions {
	enabled := map[Source]bool{}
	for _, s := range o.Sources {
		enabled[s] = true
	}
	o.Sources = orderSources(enabled)
	if len(o.Sources) == 0 {
		o.Sources = AllSources
	}
	if o.TimeRangeDays <= 0 {
		o.TimeRangeDays = defaultTimeRangeDays
	}
	if o.MaxResults <= 0 {
		o.MaxResults = defaultMaxResults
	}
	return o
}

// Service resolves people across the directory, personal contacts and email history.
type Service struct {
	resolver        Resolver
	contacts        ContactLister
	mailbox         MailboxReader
	directory       *DirectoryAdapter
	cache           Cache
	directoryTTL    time.Duration
	maxHistoryItems int
	logger          *slog.Logger
	tracer          trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache memoizes directory searches.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithDirectoryTTL sets how long directory searches stay cached.
func WithDirectoryTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.directoryTTL = ttl
		}
	}
}

// WithMaxHistoryItems caps the items scanned per folder for email history.
func WithMaxHistoryItems(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxHistoryItems = n
		}
	}
}

// NewService creates a Service. Any collaborator may be nil; its source then contributes nothing.
func NewService(resolver Resolver, contacts ContactLister, mailbox MailboxReader, opts ...Option) *Service {
	s := &Service{
		resolver:        resolver,
		contacts:        contacts,
		mailbox:         mailbox,
		directoryTTL:    defaultDirectoryTTL,
		maxHistoryItems: defaultMaxHistoryItems,
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if resolver != nil {
		s.directory = NewDirectoryAdapter(resolver, contacts, WithDirectoryLogger(s.logger))
	}
	return s
}

// FindPerson searches every enabled source, merges duplicates by email and returns
// at most opts.MaxResults people ordered by relevance. Only a blank query is an error;
// failing sources are logged and contribute no results.
func (s *Service) FindPerson(ctx context.Context, opts FindOptions) ([]*Person, error) {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	opts.Query = query
	opts = opts.normalized()

	ctx, span := s.tracer.Start(ctx, "person.Service.FindPerson",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("max_results", opts.MaxResults),
			attribute.Int("source_count", len(opts.Sources)),
		),
	)
	defer span.End()
	started := time.Now()

	batches := make([][]*Person, len(opts.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range opts.Sources {
		g.Go(func() error {
			batches[i] = s.fetchSource(gctx, source, opts)
			return nil
		})
	}
	_ = g.Wait()

	acc := newResultSet()
	for _, batch := range batches {
		acc.addAll(batch, "")
	}
	ranked := Rank(acc.list(0), query, Now())
	if len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}

	findDuration.Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("result_count", len(ranked)))
	s.logger.Info("person lookup", "query", query, "count", len(ranked), "elapsed", time.Since(started))
	return ranked, nil
}

// fetchSource returns one source's people; failures and panics yield nil.
func (s *Service) fetchSource(ctx context.Context, source Source, opts FindOptions) (people []*Person) {
	ctx, span := s.tracer.Start(ctx, "person.Service.fetch",
		trace.WithAttributes(attribute.String("source", string(source))))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			people = nil
			s.sourceFailed(span, source, opts.Query, fmt.Errorf("panic: %v", r))
		}
	}()

	people, err := s.fetch(ctx, source, opts)
	if errors.Is(err, errSourceUnavailable) {
		s.logger.Debug("person source not configured", "source", source)
		return nil
	}
	if err != nil {
		s.sourceFailed(span, source, opts.Query, err)
		return nil
	}
	span.SetAttributes(attribute.Int("result_count", len(people)))
	return people
}

func (s *Service) fetch(ctx context.Context, source Source, opts FindOptions) ([]*Person, error) {
	switch source {
	case SourceDirectory:
		return s.searchDirectory(ctx, opts.Query, opts.MaxResults)
	case SourcePersonalContacts:
		return scanContacts(ctx, s.contacts, opts.Query, s.logger)
	case SourceEmailHistory:
		return s.searchEmailHistory(ctx, opts.Query, opts.TimeRangeDays, opts.IncludeStats)
	}
	return nil, fmt.Errorf("unsupported source %q", source)
}

func (s *Service) sourceFailed(span trace.Span, source Source, query string, err error) {
	sourceFailures.WithLabelValues(string(source)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("person source failed", "source", source, "query", query, "error", err)
}

func (s *Service) searchDirectory(ctx context.Context, query string, maxResults int) ([]*Person, error) {
	if s.directory == nil {
		return nil, errSourceUnavailable
	}
	fetch := func(ctx context.Context) ([]*Person, error) {
		return s.directory.Search(ctx, query, maxResults, true), nil
	}
	if s.cache == nil {
		return fetch(ctx)
	}
	key := fmt.Sprintf("%s%s:%d", directoryCachePrefix, query, maxResults)
	return s.cache.GetOrFetch(ctx, key, s.directoryTTL, fetch)
}

// GetPerson returns the best match for email, or nil when nobody matches.
func (s *Service) GetPerson(ctx context.Context, email string, includeHistory bool, daysBack int) (*Person, error) {
	opts := NewFindOptions(email)
	opts.IncludeStats = includeHistory
	opts.TimeRangeDays = daysBack
	opts.MaxResults = 1
	people, err := s.FindPerson(ctx, opts)
	if err != nil || len(people) == 0 {
		return nil, err
	}
	return people[0], nil
}

// ResolveNames passes query straight to the directory resolver.
func (s *Service) ResolveNames(ctx context.Context, query string, fullData bool) ([]Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if s.resolver == nil {
		return nil, errSourceUnavailable
	}
	resolutions, err := s.resolver.Resolve(ctx, query, fullData)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", query, err)
	}
	return resolutions, nil
}
