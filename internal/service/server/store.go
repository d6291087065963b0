package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledgerchat/internal/model"
)

// MessageStore is the ledger behind the dev server: append-only
// messages with monotonic ids, opaque image blobs and display
// profiles. Implemented in memory and on mongo.
type MessageStore interface {
	Append(ctx context.Context, m model.Message) (model.Message, error)
	Page(ctx context.Context, page, pageSize int) (model.Page, error)
	Count(ctx context.Context) (int, error)

	PutImage(ctx context.Context, data []byte) (int64, error)
	GetImage(ctx context.Context, ref int64) ([]byte, error)

	GetProfile(ctx context.Context, clientID string) (*model.Profile, error)
	PutProfile(ctx context.Context, clientID string, p model.Profile) error
}

// MemoryStore keeps everything in process; the default for local
// development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	messages []model.Message
	nextID   int64

	images    map[int64][]byte
	nextImage int64

	profiles map[string]model.Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		nextImage: 1,
		images:    make(map[int64][]byte),
		profiles:  make(map[string]model.Profile),
	}
}

func (s *MemoryStore) Append(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixNano()
	}
	s.messages = append(s.messages, m)
	return m, nil
}

// Page slices the log counted from the newest end: page 1 holds the
// most recent pageSize messages, page 2 the pageSize before those, and
// so on. Messages inside a page stay in (timestamp, id) ascending
// order.
func (s *MemoryStore) Page(_ context.Context, page, pageSize int) (model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]model.Message, len(s.messages))
	copy(ordered, s.messages)
	sort.Slice(ordered, func(i, j int) bool {
		return model.Before(ordered[i], ordered[j])
	})

	return paginate(ordered, page, pageSize), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), nil
}

func (s *MemoryStore) PutImage(_ context.Context, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.nextImage
	s.nextImage++
	blob := make([]byte, len(data))
	copy(blob, data)
	s.images[ref] = blob
	return ref, nil
}

func (s *MemoryStore) GetImage(_ context.Context, ref int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.images[ref]
	if !ok {
		return nil, nil
	}
	return blob, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, clientID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[clientID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) PutProfile(_ context.Context, clientID string, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[clientID] = p
	return nil
}

// paginate is shared by both store implementations once messages are
// in ascending order.
func paginate(ordered []model.Message, page, pageSize int) model.Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	total := len(ordered)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	end := total - (page-1)*pageSize
	if end < 0 {
		end = 0
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}

	out := make([]model.Message, end-start)
	copy(out, ordered[start:end])

	return model.Page{
		Messages:   out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
