package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/db"
	"Chatline/internal/group"
	"Chatline/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrConflict means a guarded write found the document in a state that no
	// longer satisfies the guard. Callers reload and re-check.
	ErrConflict = errors.New("document changed concurrently")

	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 50
)

// ChatStore persists chats and messages. Implementations must apply receipt
// updates and guarded group changes atomically per document.
type ChatStore interface {
	FindOrCreateDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error)
	CreateGroup(ctx context.Context, admin, name string, participants []string) (*model.Chat, error)
	FindChat(ctx context.Context, chatID string) (*model.Chat, error)
	ListUserGroups(ctx context.Context, userID string) ([]model.Chat, error)
	ListUserChats(ctx context.Context, userID string) ([]model.Chat, error)
	// ApplyGroupChange writes change only if group.Authorize still accepts it
	// against the stored chat, otherwise it returns ErrConflict. For deletes the
	// returned chat is the state before removal.
	ApplyGroupChange(ctx context.Context, chatID string, change group.Change) (*model.Chat, error)

	AppendMessage(ctx context.Context, chatID, senderID, content string, contentType model.ContentType, deliveredTo []string) (*model.Message, error)
	FindMessage(ctx context.Context, messageID string) (*model.Message, error)
	// FindPendingMessages opens a fresh cursor over every message not yet
	// delivered to userID in chats userID belongs to, oldest first.
	FindPendingMessages(ctx context.Context, userID string) (PendingCursor, error)
	History(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error)
	MarkDelivered(ctx context.Context, messageID, userID string) error
	// MarkSeen reports whether userID was newly added to seen_by.
	MarkSeen(ctx context.Context, messageID, userID string) (*model.Message, bool, error)
}

// PendingCursor iterates pending messages lazily.
type PendingCursor interface {
	Next(ctx context.Context) bool
	Current() *model.PendingMessage
	Err() error
	Close(ctx context.Context) error
}

func validateGroupInput(admin, name string) error {
	if admin == "" || name == "" {
		return apperror.Validation("Admin and group name is required!")
	}
	return nil
}

func validatePair(userA, userB string) error {
	if userA == "" || userB == "" {
		return apperror.Validation("Both participants are required.")
	}
	if userA == userB {
		return apperror.Validation("Cannot start a direct chat with yourself.")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts. Only reads and idempotent updates go through here.
func withRetry[T any](ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return zero, err
			}
			logger.Warn("retrying store operation",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: %w: %w", op, ErrMaxRetriesExceeded, lastErr)
}

// translate classifies a driver error for callers above the store.
func translate(logger *zap.Logger, op string, err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperror.NotFound(notFound)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("store operation timed out", zap.String("op", op))
		return apperror.Internal(fmt.Errorf("%s: %w", op, ErrOperationTimeout))
	case errors.Is(err, context.Canceled):
		return apperror.Internal(fmt.Errorf("%s: %w", op, err))
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return apperror.Internal(fmt.Errorf("%s: %w", op, err))
}
