package person

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return fixedNow }
	t.Cleanup(func() { Now = prev })
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, query string, fullData bool) ([]Resolution, error) {
	args := m.Called(ctx, query, fullData)
	res, _ := args.Get(0).([]Resolution)
	return res, args.Error(1)
}

// answer registers the resolutions returned for query regardless of fullData.
func (m *mockResolver) answer(query string, res ...Resolution) *mockResolver {
	m.On("Resolve", mock.Anything, query, mock.Anything).Return(res, nil)
	return m
}

// otherwiseEmpty makes every unregistered query resolve to nothing.
func (m *mockResolver) otherwiseEmpty() *mockResolver {
	m.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return([]Resolution(nil), nil)
	return m
}

func (m *mockResolver) resolvedQueries() []string {
	var out []string
	for _, call := range m.Calls {
		out = append(out, call.Arguments.String(1))
	}
	return out
}

func resolution(name, email string) Resolution {
	return Resolution{Mailbox: Mailbox{Name: name, EmailAddress: email, RoutingType: "SMTP"}}
}

type fakeContacts struct {
	contacts []ContactInfo
	err      error
	mu       sync.Mutex
	calls    int
}

func (f *fakeContacts) ListContacts(_ context.Context, limit int) ([]ContactInfo, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.contacts) > limit {
		return f.contacts[:limit], nil
	}
	return f.contacts, nil
}

func contact(given, surname, email string) ContactInfo {
	return ContactInfo{
		DisplayName:    given + " " + surname,
		GivenName:      given,
		Surname:        surname,
		EmailAddresses: []ContactEmail{{Address: email}},
	}
}

type fakeMailbox struct {
	items map[Folder][]MailItem
	errs  map[Folder]error
	mu    sync.Mutex
	since map[Folder]time.Time
}

func (f *fakeMailbox) FilterItems(_ context.Context, folder Folder, since time.Time, limit int) ([]MailItem, error) {
	f.mu.Lock()
	if f.since == nil {
		f.since = map[Folder]time.Time{}
	}
	f.since[folder] = since
	f.mu.Unlock()
	if err := f.errs[folder]; err != nil {
		return nil, err
	}
	items := f.items[folder]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func received(name, email string, at time.Time) MailItem {
	return MailItem{Sender: &Mailbox{Name: name, EmailAddress: email}, Received: at}
}

func sentTo(at time.Time, to ...Mailbox) MailItem {
	return MailItem{ToRecipients: to, Sent: at}
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]*Person
	keys    []string
	ttls    []time.Duration
}

func (f *fakeCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]*Person, error)) ([]*Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.ttls = append(f.ttls, ttl)
	if v, ok := f.entries[key]; ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if f.entries == nil {
		f.entries = map[string][]*Person{}
	}
	f.entries[key] = v
	return v, nil
}

var errTransport = errors.New("transport down")
