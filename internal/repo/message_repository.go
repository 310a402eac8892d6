package repo

import (
	"context"
	"fmt"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/db"
	"Chatline/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// AppendMessage
// -----------------------------------------------------------------------------

func (s *MongoStore) AppendMessage(ctx context.Context, chatID, senderID, content string, contentType model.ContentType, deliveredTo []string) (*model.Message, error) {
	chatOID, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg := model.Message{
		ChatID:      chatOID,
		SenderID:    senderID,
		Content:     content,
		ContentType: contentType,
		DeliveredTo: model.UniqueIDs(append([]string{senderID}, deliveredTo...)...),
		SeenBy:      []string{senderID},
		CreatedAt:   time.Now().UTC(),
	}

	// Inserts are not retried: a timeout after the server applied the write
	// would otherwise duplicate the message.
	id, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, translate(s.logger, "append_message", err, "")
	}
	msg.ID = id

	s.logger.Debug("message inserted",
		zap.String("message_id", id.Hex()),
		zap.String("chat_id", chatID),
		zap.String("sender_id", senderID),
	)

	_, err = s.chats.UpdateByID(ctx, chatOID, bson.M{"last_message_id": id, "updated_at": msg.CreatedAt})
	if err != nil {
		s.logger.Warn("failed to update chat last message",
			zap.String("chat_id", chatID),
			zap.String("message_id", id.Hex()),
			zap.Error(err),
		)
	}

	return &msg, nil
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

func (s *MongoStore) FindMessage(ctx context.Context, messageID string) (*model.Message, error) {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return nil, apperror.Validation("Invalid message id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := withRetry(ctx, s.logger, "find_message", func(ctx context.Context) (*model.Message, error) {
		return s.messages.FindByID(ctx, oid)
	})
	if err != nil {
		return nil, translate(s.logger, "find_message", err, "Message not found.")
	}
	return msg, nil
}

func (s *MongoStore) History(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("chat_id", oid).Build()
	params := db.PaginationParams{
		Page:     page,
		PageSize: historyPageSize,
		SortBy:   "created_at",
	}

	result, err := withRetry(ctx, s.logger, "history", func(ctx context.Context) (*db.PaginatedResult[model.Message], error) {
		return s.messages.FindWithPagination(ctx, filter, params)
	})
	if err != nil {
		return nil, translate(s.logger, "history", err, "")
	}

	s.logger.Debug("history page loaded",
		zap.String("chat_id", chatID),
		zap.Int("count", len(result.Data)),
		zap.Int64("page", result.Page),
		zap.Int64("total_pages", result.TotalPages),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Pending messages
// -----------------------------------------------------------------------------

func (s *MongoStore) FindPendingMessages(ctx context.Context, userID string) (PendingCursor, error) {
	chatCtx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	chatOpts := options.Find().SetProjection(bson.M{"_id": 1, "is_group": 1, "name": 1})
	chats, err := withRetry(chatCtx, s.logger, "pending_chats", func(ctx context.Context) ([]model.ChatRef, error) {
		var refs []model.ChatRef
		cur, err := s.chats.Find(ctx, db.NewFilter().Eq("participants", userID).Build(), chatOpts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		if err := cur.All(ctx, &refs); err != nil {
			return nil, err
		}
		return refs, nil
	})
	if err != nil {
		return nil, translate(s.logger, "find_pending_messages", err, "")
	}
	if len(chats) == 0 {
		return &slicePendingCursor{}, nil
	}

	refs := make(map[primitive.ObjectID]model.ChatRef, len(chats))
	ids := make([]primitive.ObjectID, 0, len(chats))
	for _, c := range chats {
		refs[c.ID] = c
		ids = append(ids, c.ID)
	}

	filter := db.NewFilter().In("chat_id", ids).Ne("delivered_to", userID).Build()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	// The cursor outlives this call, so it runs on the caller's context.
	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(s.logger, "find_pending_messages", err, "")
	}
	return &mongoPendingCursor{cur: cur, chats: refs, logger: s.logger}, nil
}

type mongoPendingCursor struct {
	cur     *mongo.Cursor
	chats   map[primitive.ObjectID]model.ChatRef
	current *model.PendingMessage
	err     error
	logger  *zap.Logger
}

func (c *mongoPendingCursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cur.Next(ctx) {
		return false
	}
	var msg model.Message
	if err := c.cur.Decode(&msg); err != nil {
		c.err = fmt.Errorf("decode pending message: %w", err)
		return false
	}
	c.current = &model.PendingMessage{Message: msg, Chat: c.chats[msg.ChatID]}
	return true
}

func (c *mongoPendingCursor) Current() *model.PendingMessage { return c.current }

func (c *mongoPendingCursor) Err() error {
	if c.err != nil {
		return translate(c.logger, "pending_cursor", c.err, "")
	}
	return translate(c.logger, "pending_cursor", c.cur.Err(), "")
}

func (c *mongoPendingCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// -----------------------------------------------------------------------------
// Receipts
// -----------------------------------------------------------------------------

// MarkDelivered adds userID to delivered_to. $addToSet keeps it idempotent and
// makes concurrent receipts from different connections commute.
func (s *MongoStore) MarkDelivered(ctx context.Context, messageID, userID string) error {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return apperror.Validation("Invalid message id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := withRetry(ctx, s.logger, "mark_delivered", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return s.messages.UpdateOne(ctx,
			bson.M{"_id": oid},
			bson.M{"$addToSet": bson.M{"delivered_to": userID}},
		)
	})
	if err != nil {
		return translate(s.logger, "mark_delivered", err, "Message not found.")
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("Message not found.")
	}
	return nil
}

// MarkSeen adds userID to both seen_by and delivered_to in one atomic update.
// changed reports whether seen_by grew; seen_by ⊆ delivered_to means a
// modified document always has a new seen_by entry.
func (s *MongoStore) MarkSeen(ctx context.Context, messageID, userID string) (*model.Message, bool, error) {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return nil, false, apperror.Validation("Invalid message id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := withRetry(ctx, s.logger, "mark_seen", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return s.messages.UpdateOne(ctx,
			bson.M{"_id": oid},
			bson.M{"$addToSet": bson.M{"seen_by": userID, "delivered_to": userID}},
		)
	})
	if err != nil {
		return nil, false, translate(s.logger, "mark_seen", err, "Message not found.")
	}
	if result.MatchedCount == 0 {
		return nil, false, apperror.NotFound("Message not found.")
	}

	msg, err := s.FindMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return msg, result.ModifiedCount > 0, nil
}
