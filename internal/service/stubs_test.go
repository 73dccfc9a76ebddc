package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	apperrors "jutjubic/pkg/errors"
)

type stubUserRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.User
	logins  int
	failGet error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{byID: make(map[uuid.UUID]*domain.User)}
}

func (s *stubUserRepository) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return apperrors.ErrUserAlreadyExists
		}
	}
	stored := *user
	s.byID[user.ID] = &stored
	return nil
}

func (s *stubUserRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubUserRepository) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		u.LastLoginAt = &at
	}
	s.logins++
	return nil
}

func (s *stubUserRepository) setActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].IsActive = active
}

type stubCommentRepository struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]*domain.Comment
	videos   map[int64]bool
}

func newStubCommentRepository(videoIDs ...int64) *stubCommentRepository {
	videos := make(map[int64]bool)
	for _, id := range videoIDs {
		videos[id] = true
	}
	return &stubCommentRepository{comments: make(map[int64]*domain.Comment), videos: videos}
}

func (s *stubCommentRepository) Create(_ context.Context, c *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.videos[c.VideoID] {
		return apperrors.ErrVideoNotFound
	}
	s.nextID++
	c.ID = s.nextID
	stored := *c
	s.comments[c.ID] = &stored
	return nil
}

func (s *stubCommentRepository) GetByID(_ context.Context, id int64) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, apperrors.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubCommentRepository) ListByVideo(_ context.Context, videoID int64, limit, offset int) ([]*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*domain.Comment
	for id := s.nextID; id > 0; id-- {
		if c, ok := s.comments[id]; ok && c.VideoID == videoID {
			all = append(all, c)
		}
	}
	if offset >= len(all) {
		return []*domain.Comment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *stubCommentRepository) CountByVideo(_ context.Context, videoID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.comments {
		if c.VideoID == videoID {
			n++
		}
	}
	return n, nil
}

func (s *stubCommentRepository) ListByAuthor(_ context.Context, authorID uuid.UUID) ([]*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.AuthorID == authorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubCommentRepository) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return apperrors.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

type recordingAuditRepository struct {
	mu     sync.Mutex
	events []*domain.AuditLog
	err    error
}

func (r *recordingAuditRepository) Append(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, entry)
	return nil
}

func (r *recordingAuditRepository) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
