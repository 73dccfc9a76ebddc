package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jutjubic/internal/domain"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const pgForeignKeyViolation = "23503"

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByVideo(ctx context.Context, videoID int64, limit, offset int) ([]*domain.Comment, error)
	CountByVideo(ctx context.Context, videoID int64) (int64, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.Comment, error)
	Delete(ctx context.Context, id int64) error
}

type commentRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewCommentRepository(db *pgxpool.Pool, log logger.Logger) CommentRepository {
	return &commentRepository{db: db, log: log}
}

const commentSelect = `
	SELECT c.id, c.video_id, c.author_id, c.text, c.created_at,
	       u.username, u.email, u.first_name, u.last_name
	FROM comments c
	JOIN users u ON u.id = c.author_id
`

func scanComment(row pgx.Row) (*domain.Comment, error) {
	comment := &domain.Comment{Author: &domain.UserRef{}}
	err := row.Scan(
		&comment.ID, &comment.VideoID, &comment.AuthorID, &comment.Text, &comment.CreatedAt,
		&comment.Author.Username, &comment.Author.Email, &comment.Author.FirstName, &comment.Author.LastName,
	)
	comment.Author.ID = comment.AuthorID
	return comment, err
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (video_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		comment.VideoID, comment.AuthorID, comment.Text, comment.CreatedAt,
	).Scan(&comment.ID, &comment.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			r.log.Warn("Comment references missing video", "video_id", comment.VideoID, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("video %d: %w", comment.VideoID, apperrors.ErrVideoNotFound)
		}
		r.log.Error("Failed to create comment", "error", err, "video_id", comment.VideoID)
		return fmt.Errorf("create comment: %w", err)
	}

	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	comment, err := scanComment(r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("comment %d: %w", id, apperrors.ErrCommentNotFound)
		}
		r.log.Error("Failed to get comment", "error", err, "comment_id", id)
		return nil, err
	}
	return comment, nil
}

func (r *commentRepository) ListByVideo(ctx context.Context, videoID int64, limit, offset int) ([]*domain.Comment, error) {
	query := commentSelect + `
		WHERE c.video_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, videoID, limit, offset)
}

func (r *commentRepository) CountByVideo(ctx context.Context, videoID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count comments", "error", err, "video_id", videoID)
		return 0, err
	}
	return count, nil
}

func (r *commentRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.Comment, error) {
	query := commentSelect + `
		WHERE c.author_id = $1
		ORDER BY c.created_at DESC, c.id DESC
	`
	return r.list(ctx, query, authorID)
}

func (r *commentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Comment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list comments", "error", err)
		return nil, err
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			r.log.Error("Failed to scan comment", "error", err)
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete comment", "error", err, "comment_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %d: %w", id, apperrors.ErrCommentNotFound)
	}
	return nil
}
