package mcp

import (
	"sort"
	"sync"
	"time"
)

// PendingAuth tracks one device login started on behalf of a tool call.
type PendingAuth struct {
	UUID      string
	Alias     string
	TenantID  string
	Namespace string
	Created   time.Time
	done      chan struct{}
}

// Done is closed when the login completes or is cancelled.
func (p *PendingAuth) Done() <-chan struct{} { return p.done }

// PendingAuths indexes pending device logins by id and by namespace.
type PendingAuths struct {
	mu   sync.RWMutex
	byID map[string]*PendingAuth
	byNS map[string]map[string]*PendingAuth // ns -> uuid -> pending
}

func NewPendingAuths() *PendingAuths {
	return &PendingAuths{byID: make(map[string]*PendingAuth), byNS: make(map[string]map[string]*PendingAuth)}
}

func (p *PendingAuths) Put(x *PendingAuth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if x.Namespace == "" {
		x.Namespace = "default"
	}
	if x.done == nil {
		x.done = make(chan struct{})
	}
	if x.Created.IsZero() {
		x.Created = time.Now()
	}
	p.byID[x.UUID] = x
	m, ok := p.byNS[x.Namespace]
	if !ok {
		m = map[string]*PendingAuth{}
		p.byNS[x.Namespace] = m
	}
	m[x.UUID] = x
}

func (p *PendingAuths) Get(uuid string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	x, ok := p.byID[uuid]
	return x, ok
}

// Find returns the pending login for alias in namespace, if any.
func (p *PendingAuths) Find(ns, alias string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, x := range p.byNS[ns] {
		if x.Alias == alias {
			return x, true
		}
	}
	return nil, false
}

// Complete removes uuid and signals its waiters; unknown ids are ignored.
func (p *PendingAuths) Complete(uuid string) {
	p.mu.Lock()
	x, ok := p.byID[uuid]
	if ok {
		p.remove(x)
	}
	p.mu.Unlock()
	if ok {
		close(x.done)
	}
}

func (p *PendingAuths) Cancel(uuid string) {
	p.Complete(uuid)
}

func (p *PendingAuths) remove(x *PendingAuth) {
	delete(p.byID, x.UUID)
	if m, ok := p.byNS[x.Namespace]; ok {
		delete(m, x.UUID)
		if len(m) == 0 {
			delete(p.byNS, x.Namespace)
		}
	}
}

// ListNamespace returns a snapshot of pending auths for a namespace, oldest first.
func (p *PendingAuths) ListNamespace(ns string) []*PendingAuth {
	p.mu.RLock()
	m := p.byNS[ns]
	out := make([]*PendingAuth, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// ClearNamespace removes all pending auths for a namespace and returns cleared UUIDs.
func (p *PendingAuths) ClearNamespace(ns string) []string {
	p.mu.Lock()
	var cleared []*PendingAuth
	for _, x := range p.byNS[ns] {
		cleared = append(cleared, x)
	}
	for _, x := range cleared {
		p.remove(x)
	}
	p.mu.Unlock()
	ids := make([]string, 0, len(cleared))
	for _, x := range cleared {
		ids = append(ids, x.UUID)
		close(x.done)
	}
	sort.Strings(ids)
	return ids
}
