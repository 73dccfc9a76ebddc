package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jutjubic/internal/middleware"
	"jutjubic/internal/service"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

type CommentHandler struct {
	commentService service.CommentService
	log            logger.Logger
}

func NewCommentHandler(commentService service.CommentService, log logger.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log,
	}
}

type CreateCommentRequest struct {
	VideoID int64  `json:"video_id" binding:"required,gt=0"`
	Text    string `json:"text"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	comment, err := h.commentService.Create(c.Request.Context(), user.Ref(), req.VideoID, req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) ListByVideo(c *gin.Context) {
	videoID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(service.DefaultCommentPageSize)))

	result, err := h.commentService.ListByVideo(c.Request.Context(), videoID, page, size)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CommentHandler) CountByVideo(c *gin.Context) {
	videoID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	count, err := h.commentService.CountByVideo(c.Request.Context(), videoID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_id": videoID, "count": count})
}

func (h *CommentHandler) ListMine(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	comments, err := h.commentService.ListByAuthor(c.Request.Context(), user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}
	commentID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.commentService.Delete(c.Request.Context(), user, commentID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

func (h *CommentHandler) RateLimitStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	status := h.commentService.RateLimitStatus(c.Request.Context(), user.ID)
	c.JSON(http.StatusOK, gin.H{
		"remaining":        status.Remaining,
		"limit":            status.Limit,
		"reset_in_seconds": status.ResetInSeconds(),
	})
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}
