package repo

import (
	"context"
	"errors"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/db"
	"Chatline/internal/group"
	"Chatline/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore is the MongoDB backed ChatStore.
type MongoStore struct {
	chats    *db.Repository[model.Chat]
	messages *db.Repository[model.Message]
	logger   *zap.Logger
}

func NewMongoStore(con *mongo.Database, chatsCollection, messagesCollection string, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		chats:    db.NewRepository[model.Chat](con, chatsCollection),
		messages: db.NewRepository[model.Message](con, messagesCollection),
		logger:   logger,
	}
}

// EnsureIndexes creates the indexes the store relies on. The unique pair_key
// index is what keeps direct chats unique under concurrent first contact.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := s.chats.EnsureIndexes(ctx,
		mongo.IndexModel{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pair_key": bson.M{"$exists": true}}),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "is_group", Value: 1}}},
	)
	if err != nil {
		return err
	}

	return s.messages.EnsureIndexes(ctx,
		mongo.IndexModel{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}}},
	)
}

// -----------------------------------------------------------------------------
// FindOrCreateDirectChat
// -----------------------------------------------------------------------------

func (s *MongoStore) FindOrCreateDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := db.NewFilter().Eq("pair_key", model.PairKey(userA, userB)).Build()
	update := bson.M{"$setOnInsert": bson.M{
		"is_group":     false,
		"participants": []string{userA, userB},
		"admins":       []string{},
		"created_at":   now,
		"updated_at":   now,
	}}

	chat, err := s.chats.FindOneAndUpdate(ctx, filter, update, true)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the race against the other side's upsert; theirs is the chat.
		chat, err = s.chats.FindOne(ctx, filter)
	}
	if err != nil {
		return nil, translate(s.logger, "find_or_create_direct_chat", err, "Chat not found.")
	}
	return chat, nil
}

// -----------------------------------------------------------------------------
// CreateGroup
// -----------------------------------------------------------------------------

func (s *MongoStore) CreateGroup(ctx context.Context, admin, name string, participants []string) (*model.Chat, error) {
	if err := validateGroupInput(admin, name); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	chat := model.Chat{
		IsGroup:      true,
		Name:         name,
		Participants: model.UniqueIDs(append([]string{admin}, participants...)...),
		Admins:       []string{admin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := s.chats.Create(ctx, chat)
	if err != nil {
		return nil, translate(s.logger, "create_group", err, "")
	}
	chat.ID = id

	s.logger.Info("group created",
		zap.String("chat_id", id.Hex()),
		zap.String("admin", admin),
		zap.Int("participants_count", len(chat.Participants)),
	)
	return &chat, nil
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

func (s *MongoStore) FindChat(ctx context.Context, chatID string) (*model.Chat, error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	chat, err := withRetry(ctx, s.logger, "find_chat", func(ctx context.Context) (*model.Chat, error) {
		return s.chats.FindByID(ctx, oid)
	})
	if err != nil {
		return nil, translate(s.logger, "find_chat", err, "Chat not found.")
	}
	return chat, nil
}

func (s *MongoStore) ListUserGroups(ctx context.Context, userID string) ([]model.Chat, error) {
	filter := db.NewFilter().Eq("is_group", true).Eq("participants", userID).Build()
	return s.listChats(ctx, "list_user_groups", filter)
}

func (s *MongoStore) ListUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	filter := db.NewFilter().Eq("participants", userID).Build()
	return s.listChats(ctx, "list_user_chats", filter)
}

func (s *MongoStore) listChats(ctx context.Context, op string, filter bson.M) ([]model.Chat, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	chats, err := withRetry(ctx, s.logger, op, func(ctx context.Context) ([]model.Chat, error) {
		return s.chats.FindAll(ctx, filter, opts)
	})
	if err != nil {
		return nil, translate(s.logger, op, err, "")
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return chats, nil
}

// -----------------------------------------------------------------------------
// ApplyGroupChange
// -----------------------------------------------------------------------------

func (s *MongoStore) ApplyGroupChange(ctx context.Context, chatID string, change group.Change) (*model.Chat, error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	filter, update, err := groupChangeQuery(oid, change, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var chat *model.Chat
	if change.Op == group.OpDelete {
		chat, err = s.chats.FindOneAndDelete(ctx, filter)
	} else {
		chat, err = s.chats.FindOneAndUpdate(ctx, filter, update, false)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, translate(s.logger, "apply_group_change", err, "Group not found!")
	}

	s.logger.Info("group changed",
		zap.String("chat_id", chatID),
		zap.String("op", change.Op.String()),
		zap.String("actor", change.Actor),
		zap.String("target", change.Target),
	)
	return chat, nil
}

// groupChangeQuery encodes the guard from group.Authorize into the filter so
// the write only lands if the rules still hold for the stored document.
func groupChangeQuery(id primitive.ObjectID, change group.Change, now time.Time) (bson.M, bson.M, error) {
	f := db.NewFilter().Eq("_id", id).Eq("is_group", true).Eq("admins", change.Actor)
	touched := bson.M{"updated_at": now}

	switch change.Op {
	case group.OpAddParticipants:
		if len(change.Participants) == 0 {
			return nil, nil, apperror.Validation("At least one participant is required.")
		}
		return f.Build(), bson.M{
			"$addToSet": bson.M{"participants": bson.M{"$each": change.Participants}},
			"$set":      touched,
		}, nil

	case group.OpRemoveParticipant:
		f.Eq("participants", change.Target).Or(
			bson.M{"admins": bson.M{"$ne": change.Target}},
			bson.M{"admins": bson.M{"$elemMatch": bson.M{"$ne": change.Target}}},
		)
		return f.Build(), bson.M{
			"$pull": bson.M{"participants": change.Target, "admins": change.Target},
			"$set":  touched,
		}, nil

	case group.OpPromoteAdmin:
		f.Eq("participants", change.Target)
		return f.Build(), bson.M{
			"$addToSet": bson.M{"admins": change.Target},
			"$set":      touched,
		}, nil

	case group.OpDemoteAdmin:
		f.All("admins", []string{change.Actor, change.Target}).
			Eq("participants", change.Target).
			HasOtherThan("admins", change.Target)
		return f.Build(), bson.M{
			"$pull": bson.M{"admins": change.Target},
			"$set":  touched,
		}, nil

	case group.OpRename:
		if change.Name == "" {
			return nil, nil, apperror.Validation("Group name is required!")
		}
		touched["name"] = change.Name
		return f.Build(), bson.M{"$set": touched}, nil

	case group.OpDelete:
		return f.Build(), nil, nil
	}
	return nil, nil, apperror.Validation("Unknown group operation.")
}
