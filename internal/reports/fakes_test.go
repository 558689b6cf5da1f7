package reports

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/realtime"
)

type memStore struct {
	mu      sync.Mutex
	seq     int
	reports map[string]*Report
}

func newMemStore() *memStore {
	return &memStore{reports: map[string]*Report{}}
}

func (m *memStore) Create(ctx context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = "r" + strconv.Itoa(m.seq)
	if r.Status == "" {
		r.Status = StatusSubmitted
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Add(time.Duration(m.seq) * time.Millisecond)
	}
	r.UpdatedAt = r.CreatedAt
	if r.StatusUpdatedAt.IsZero() {
		r.StatusUpdatedAt = r.CreatedAt
	}
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) sorted() []Report {
	out := make([]Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]Report, int64, error) {
	f = f.normalized()
	m.mu.Lock()
	defer m.mu.Unlock()
	var match []Report
	for _, r := range m.sorted() {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		match = append(match, r)
	}
	if !f.Desc {
		for i, j := 0, len(match)-1; i < j; i, j = i+1, j-1 {
			match[i], match[j] = match[j], match[i]
		}
	}
	total := int64(len(match))
	start := f.Skip()
	if start > len(match) {
		start = len(match)
	}
	end := start + f.Limit
	if end > len(match) {
		end = len(match)
	}
	return append([]Report{}, match[start:end]...), total, nil
}

func (m *memStore) mutate(id string, fn func(r *Report)) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(r)
	cp := *r
	return &cp, nil
}

func (m *memStore) SetStatus(ctx context.Context, id string, ch StatusChange) (*Report, error) {
	return m.mutate(id, func(r *Report) {
		r.Status = ch.Status
		if ch.AdminNotes != nil {
			r.AdminNotes = *ch.AdminNotes
		}
		admin := ch.AdminID
		r.AssignedAdmin = &admin
		r.StatusUpdatedAt, r.UpdatedAt = ch.At, ch.At
	})
}

func (m *memStore) Assign(ctx context.Context, id, adminID string, at time.Time) (*Report, error) {
	return m.mutate(id, func(r *Report) {
		r.AssignedAdmin = &adminID
		if r.Status == StatusSubmitted {
			r.Status = StatusInProgress
		}
		r.StatusUpdatedAt, r.UpdatedAt = at, at
	})
}

func (m *memStore) Touch(ctx context.Context, id string, at time.Time) (*Report, error) {
	return m.mutate(id, func(r *Report) {
		r.StatusUpdatedAt, r.UpdatedAt = at, at
	})
}

func (m *memStore) Delete(ctx context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.reports, id)
	return r, nil
}

func (m *memStore) Each(ctx context.Context, fn func(*Report) error) error {
	m.mu.Lock()
	all := m.sorted()
	m.mu.Unlock()
	for i := range all {
		if err := fn(&all[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Stats(ctx context.Context, since time.Time, recent int) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStatus := map[string]int64{}
	byCategory := map[string]int64{}
	byDay := map[string]int64{}
	for _, r := range m.reports {
		byStatus[string(r.Status)]++
		byCategory[string(r.Category)]++
		if !r.CreatedAt.Before(since) {
			byDay[r.CreatedAt.UTC().Format("2006-01-02")]++
		}
	}
	toBuckets := func(m map[string]int64) []Bucket {
		out := []Bucket{}
		for k, v := range m {
			out = append(out, Bucket{ID: k, Count: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	st := &Stats{
		ByStatus:   toBuckets(byStatus),
		ByCategory: toBuckets(byCategory),
		OverTime:   toBuckets(byDay),
	}
	sort.SliceStable(st.ByCategory, func(i, j int) bool { return st.ByCategory[i].Count > st.ByCategory[j].Count })
	st.tally()
	st.Recent = []RecentReport{}
	for i, r := range m.sorted() {
		if i == recent {
			break
		}
		st.Recent = append(st.Recent, RecentReport{ID: r.ID, Title: r.Title, Status: r.Status, Category: r.Category, CreatedAt: r.CreatedAt, UserID: r.UserID})
	}
	return st, nil
}

type memDirectory map[string]*auth.User

func (d memDirectory) GetByID(ctx context.Context, id string) (*auth.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func (d memDirectory) GetByIDs(ctx context.Context, ids []string) (map[string]*auth.User, error) {
	out := map[string]*auth.User{}
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type memUploads struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
}

func (u *memUploads) Save(ctx context.Context, originalName, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	url := "/uploads/" + strconv.Itoa(len(u.files)) + "-" + originalName
	u.files[url] = data
	return url, nil
}

func (u *memUploads) Remove(ctx context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.files, url)
	u.removed = append(u.removed, url)
	return nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	drops int
}

func (c *memCache) Load(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *memCache) Save(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *memCache) Drop(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.drops++
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
