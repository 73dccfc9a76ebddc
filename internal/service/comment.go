package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	"jutjubic/internal/repository"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const (
	DefaultCommentPageSize = 20
	MaxCommentPageSize     = 100
)

type CommentService interface {
	Create(ctx context.Context, author domain.UserRef, videoID int64, text string) (*domain.Comment, error)
	ListByVideo(ctx context.Context, videoID int64, page, size int) (*domain.CommentPage, error)
	CountByVideo(ctx context.Context, videoID int64) (int64, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.Comment, error)
	Delete(ctx context.Context, actor *domain.User, commentID int64) error
	RateLimitStatus(ctx context.Context, userID uuid.UUID) domain.RateLimitStatus
}

type commentService struct {
	commentRepo repository.CommentRepository
	limiter     RateLimiter
	audit       AuditService
	log         logger.Logger
}

func NewCommentService(commentRepo repository.CommentRepository, limiter RateLimiter, audit AuditService, log logger.Logger) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		limiter:     limiter,
		audit:       audit,
		log:         log,
	}
}

func (s *commentService) Create(ctx context.Context, author domain.UserRef, videoID int64, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", apperrors.ErrBadRequest)
	}
	if utf8.RuneCountInString(text) > domain.MaxCommentLength {
		return nil, fmt.Errorf("comment text exceeds %d characters: %w", domain.MaxCommentLength, apperrors.ErrBadRequest)
	}

	subject := author.ID.String()
	if err := s.limiter.Check(ctx, subject); err != nil {
		s.log.Warn("Comment rate limit exceeded", "user_id", author.ID, "video_id", videoID)
		s.audit.LogEvent(ctx, AuditEvent{
			Type:    domain.EventTypeCommentRateLimited,
			ActorID: author.ID,
			Payload: map[string]interface{}{"video_id": videoID},
		})
		return nil, err
	}

	comment := &domain.Comment{
		VideoID:   videoID,
		AuthorID:  author.ID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	ref := author
	comment.Author = &ref

	// counted after the insert; a failed increment is not fatal
	if _, err := s.limiter.IncrementAttempt(ctx, subject); err != nil {
		s.log.Warn("Failed to count comment against rate limit", "user_id", author.ID, "error", err)
	}

	s.log.Info("Comment created", "comment_id", comment.ID, "video_id", videoID, "user_id", author.ID)
	return comment, nil
}

func (s *commentService) ListByVideo(ctx context.Context, videoID int64, page, size int) (*domain.CommentPage, error) {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = DefaultCommentPageSize
	case size > MaxCommentPageSize:
		size = MaxCommentPageSize
	}
	if page > math.MaxInt32/size {
		return nil, fmt.Errorf("page %d out of range: %w", page, apperrors.ErrBadRequest)
	}

	items, err := s.commentRepo.ListByVideo(ctx, videoID, size, page*size)
	if err != nil {
		return nil, err
	}
	total, err := s.commentRepo.CountByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &domain.CommentPage{
		Items:      items,
		Page:       page,
		Size:       size,
		TotalItems: total,
	}, nil
}

func (s *commentService) CountByVideo(ctx context.Context, videoID int64) (int64, error) {
	return s.commentRepo.CountByVideo(ctx, videoID)
}

func (s *commentService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.Comment, error) {
	return s.commentRepo.ListByAuthor(ctx, authorID)
}

func (s *commentService) Delete(ctx context.Context, actor *domain.User, commentID int64) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("delete comment %d: %w", commentID, apperrors.ErrForbidden)
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		if errors.Is(err, apperrors.ErrCommentNotFound) {
			return err
		}
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}

	s.log.Info("Comment deleted", "comment_id", commentID, "actor_id", actor.ID, "admin", actor.IsAdmin())
	return nil
}

func (s *commentService) RateLimitStatus(ctx context.Context, userID uuid.UUID) domain.RateLimitStatus {
	return s.limiter.Status(ctx, userID.String())
}
