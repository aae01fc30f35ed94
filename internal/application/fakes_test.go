package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failFor map[string]error
	onSend  func(ctx context.Context, msg mailer.Message) error
}

func (f *fakeTransport) Deliver(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	err := f.failFor[msg.To]
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		if herr := hook(ctx, msg); herr != nil {
			return herr
		}
	}
	return err
}

func (f *fakeTransport) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type fakeLogRepo struct {
	mu        sync.Mutex
	entries   []entity.DeliveryLogEntry
	insertErr error
}

func (f *fakeLogRepo) Insert(ctx context.Context, e *entity.DeliveryLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// a pool query fails the same way on a done context
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeLogRepo) sorted() []entity.DeliveryLogEntry {
	f.mu.Lock()
	out := append([]entity.DeliveryLogEntry(nil), f.entries...)
	f.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out
}

func (f *fakeLogRepo) ListRecent(_ context.Context, userID string, limit int) ([]entity.DeliveryLogEntry, error) {
	out := make([]entity.DeliveryLogEntry, 0)
	for _, e := range f.sorted() {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) ListRecentByAddress(_ context.Context, userID, address string, limit int) ([]entity.DeliveryLogEntry, error) {
	out := make([]entity.DeliveryLogEntry, 0)
	for _, e := range f.sorted() {
		if e.UserID == userID && e.RecipientAddress == address && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) CountByStatus(_ context.Context, userID string, r entity.DateRange) (map[entity.DeliveryStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[entity.DeliveryStatus]int64{}
	for _, e := range f.entries {
		if e.UserID == userID && r.Contains(e.SentAt) {
			counts[e.Status]++
		}
	}
	return counts, nil
}

type fakeRecipientRepo struct {
	mu      sync.Mutex
	items   map[string]*entity.Recipient
	touched map[string]time.Time
}

func newFakeRecipientRepo(rs ...*entity.Recipient) *fakeRecipientRepo {
	f := &fakeRecipientRepo{items: map[string]*entity.Recipient{}, touched: map[string]time.Time{}}
	for _, r := range rs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Status == "" {
			r.Status = entity.RecipientActive
		}
		f.items[r.ID] = r
	}
	return f
}

func (f *fakeRecipientRepo) Create(_ context.Context, r *entity.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.items {
		if x.UserID == r.UserID && x.Email == r.Email {
			return repository.ErrDuplicate
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeRecipientRepo) GetByID(_ context.Context, userID, id string) (*entity.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecipientRepo) GetByEmail(_ context.Context, userID, email string) (*entity.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.UserID == userID && r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecipientRepo) GetByIDs(_ context.Context, userID string, ids []string) ([]entity.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Recipient, 0)
	// reversed to show callers cannot rely on storage order
	for i := len(ids) - 1; i >= 0; i-- {
		if r, ok := f.items[ids[i]]; ok && r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRecipientRepo) List(_ context.Context, userID string, fl entity.RecipientFilter) ([]entity.Recipient, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]entity.Recipient, 0)
	for _, r := range f.items {
		if r.UserID == userID && (fl.Status == "" || r.Status == fl.Status) {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	start := fl.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + fl.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *fakeRecipientRepo) Update(_ context.Context, r *entity.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[r.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeRecipientRepo) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRecipientRepo) TouchLastEmailSent(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeRecipientRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.items {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeTemplateRepo struct {
	mu    sync.Mutex
	items map[string]*entity.Template
}

func newFakeTemplateRepo(ts ...*entity.Template) *fakeTemplateRepo {
	f := &fakeTemplateRepo{items: map[string]*entity.Template{}}
	for _, t := range ts {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		f.items[t.ID] = t
	}
	return f
}

func (f *fakeTemplateRepo) Create(_ context.Context, t *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.items[t.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, userID, id string) (*entity.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTemplateRepo) List(_ context.Context, userID string, fl entity.TemplateFilter) ([]entity.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Template, 0)
	for _, t := range f.items {
		if t.UserID == userID && (fl.Category == "" || t.Category == fl.Category) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTemplateRepo) Update(_ context.Context, t *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[t.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *t
	f.items[t.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeTemplateRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.items {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeCache struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeCache) Invalidate(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies []any
	err    error
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}
