package domain

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        int64     `json:"id"`
	VideoID   int64     `json:"video_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Author    *UserRef  `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentPage struct {
	Items      []*Comment `json:"items"`
	Page       int        `json:"page"`
	Size       int        `json:"size"`
	TotalItems int64      `json:"total_items"`
}

const MaxCommentLength = 1000
