package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Chatline/internal/apperror"
	"Chatline/internal/db"
	"Chatline/internal/group"
	"Chatline/internal/model"
	"Chatline/internal/repo"

	"go.uber.org/zap"
)

// maxChangeAttempts bounds how often a group change is re-checked after the
// store reports a concurrent modification.
const maxChangeAttempts = 3

// SendResult is a persisted message together with what fan-out needs.
type SendResult struct {
	Message *model.Message
	Chat    *model.Chat
	Sender  model.Profile
}

// Recipients are the chat participants other than the sender.
func (r *SendResult) Recipients() []string {
	return Filter(r.Chat.Participants, func(id string) bool { return id != r.Message.SenderID })
}

// AddResult reports which of the requested ids were new to the group.
type AddResult struct {
	Chat     *model.Chat `json:"group"`
	Added    []string    `json:"added"`
	Existing []string    `json:"existing"`
}

// GroupDetails is a group with its participants resolved to profiles.
type GroupDetails struct {
	Chat         *model.Chat     `json:"group"`
	Participants []model.Profile `json:"participants"`
}

type ChatService struct {
	store     repo.ChatStore
	directory repo.UserDirectory
	tracker   *DeliveryTracker
	logger    *zap.Logger
}

func NewChatService(store repo.ChatStore, directory repo.UserDirectory, tracker *DeliveryTracker, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:     store,
		directory: directory,
		tracker:   tracker,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Messaging
// -----------------------------------------------------------------------------

func (s *ChatService) SendDirect(ctx context.Context, senderID, recipientID, content string, contentType model.ContentType) (*SendResult, error) {
	contentType, err := validateContent(content, contentType)
	if err != nil {
		return nil, err
	}
	if recipientID == "" {
		return nil, apperror.Validation("Recipient is required.")
	}
	if recipientID == senderID {
		return nil, apperror.Validation("Cannot send a message to yourself.")
	}

	chat, err := s.store.FindOrCreateDirectChat(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	delivered := s.tracker.InitialDeliveredTo(senderID, []string{recipientID})
	msg, err := s.store.AppendMessage(ctx, chat.ID.Hex(), senderID, content, contentType, delivered)
	if err != nil {
		return nil, err
	}

	return &SendResult{Message: msg, Chat: chat, Sender: s.Profile(ctx, senderID)}, nil
}

func (s *ChatService) SendGroup(ctx context.Context, senderID, groupID, content string, contentType model.ContentType) (*SendResult, error) {
	contentType, err := validateContent(content, contentType)
	if err != nil {
		return nil, err
	}

	chat, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsParticipant(chat, senderID) {
		return nil, apperror.Unauthorized("You are not a participant of the group.")
	}

	recipients := Filter(chat.Participants, func(id string) bool { return id != senderID })
	delivered := s.tracker.InitialDeliveredTo(senderID, recipients)
	msg, err := s.store.AppendMessage(ctx, chat.ID.Hex(), senderID, content, contentType, delivered)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("group message stored",
		zap.String("group_id", groupID),
		zap.String("sender_id", senderID),
		zap.Int("delivered_count", len(msg.DeliveredTo)),
	)
	return &SendResult{Message: msg, Chat: chat, Sender: s.Profile(ctx, senderID)}, nil
}

// MarkSeen records that userID has seen messageID. Only participants of the
// message's chat may do so. changed is false for a repeated receipt.
func (s *ChatService) MarkSeen(ctx context.Context, userID, messageID string) (msg *model.Message, changed bool, err error) {
	msg, err = s.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	chat, err := s.store.FindChat(ctx, msg.ChatID.Hex())
	if err != nil {
		return nil, false, err
	}
	if !group.IsParticipant(chat, userID) {
		return nil, false, apperror.Unauthorized("You are not a participant of the chat.")
	}
	return s.tracker.MarkSeen(ctx, messageID, userID)
}

func (s *ChatService) MarkDelivered(ctx context.Context, userID, messageID string) error {
	return s.tracker.MarkDelivered(ctx, messageID, userID)
}

// FindPendingMessages opens a cursor over everything not yet delivered to userID.
func (s *ChatService) FindPendingMessages(ctx context.Context, userID string) (repo.PendingCursor, error) {
	return s.store.FindPendingMessages(ctx, userID)
}

// History returns one page of a chat, redacted for viewerID.
func (s *ChatService) History(ctx context.Context, viewerID, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	chat, err := s.store.FindChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !group.IsParticipant(chat, viewerID) {
		return nil, apperror.Unauthorized("You are not a participant of the chat.")
	}

	result, err := s.store.History(ctx, chatID, page)
	if err != nil {
		return nil, err
	}
	result.Data = Map(result.Data, func(m model.Message) model.Message { return m.RedactFor(viewerID) })
	return result, nil
}

// -----------------------------------------------------------------------------
// Chats and groups
// -----------------------------------------------------------------------------

func (s *ChatService) ListUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	return s.store.ListUserChats(ctx, userID)
}

func (s *ChatService) ListUserGroups(ctx context.Context, userID string) ([]model.Chat, error) {
	return s.store.ListUserGroups(ctx, userID)
}

func (s *ChatService) CreateGroup(ctx context.Context, adminID, name string, participants []string) (*model.Chat, error) {
	chat, err := s.store.CreateGroup(ctx, adminID, strings.TrimSpace(name), participants)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created",
		zap.String("group_id", chat.ID.Hex()),
		zap.String("admin_id", adminID),
	)
	return chat, nil
}

func (s *ChatService) GroupDetails(ctx context.Context, viewerID, groupID string) (*GroupDetails, error) {
	chat, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsParticipant(chat, viewerID) {
		return nil, apperror.Unauthorized("You are not a participant of the group.")
	}

	profiles, err := s.directory.FindParticipantProfiles(ctx, chat.Participants)
	if err != nil {
		return nil, err
	}
	participants := Map(chat.Participants, func(id string) model.Profile {
		if p, ok := profiles[id]; ok {
			return p
		}
		return model.Profile{UserID: id}
	})
	return &GroupDetails{Chat: chat, Participants: participants}, nil
}

func (s *ChatService) AddParticipants(ctx context.Context, actorID, groupID string, ids []string) (*AddResult, error) {
	before, after, err := s.applyChange(ctx, groupID, group.AddParticipants(actorID, ids))
	if err != nil {
		return nil, err
	}
	added, existing := group.NewParticipants(before, ids)
	return &AddResult{Chat: after, Added: added, Existing: existing}, nil
}

func (s *ChatService) RemoveParticipant(ctx context.Context, actorID, groupID, targetID string) (*model.Chat, error) {
	_, after, err := s.applyChange(ctx, groupID, group.RemoveParticipant(actorID, targetID))
	return after, err
}

func (s *ChatService) PromoteAdmin(ctx context.Context, actorID, groupID, targetID string) (*model.Chat, error) {
	_, after, err := s.applyChange(ctx, groupID, group.PromoteAdmin(actorID, targetID))
	return after, err
}

func (s *ChatService) DemoteAdmin(ctx context.Context, actorID, groupID, targetID string) (*model.Chat, error) {
	_, after, err := s.applyChange(ctx, groupID, group.DemoteAdmin(actorID, targetID))
	return after, err
}

func (s *ChatService) RenameGroup(ctx context.Context, actorID, groupID, name string) (*model.Chat, error) {
	_, after, err := s.applyChange(ctx, groupID, group.Rename(actorID, name))
	return after, err
}

// DeleteGroup removes the group and returns it as it was before removal.
// Its messages stay in the store.
func (s *ChatService) DeleteGroup(ctx context.Context, actorID, groupID string) (*model.Chat, error) {
	_, after, err := s.applyChange(ctx, groupID, group.Delete(actorID))
	return after, err
}

// applyChange authorizes change against the current group and hands it to the
// store, which re-checks the guard atomically. On a conflict the group is
// reloaded so the caller gets the error that matches the new state.
func (s *ChatService) applyChange(ctx context.Context, groupID string, change group.Change) (before, after *model.Chat, err error) {
	for attempt := 1; attempt <= maxChangeAttempts; attempt++ {
		before, err = s.loadGroup(ctx, groupID)
		if err != nil {
			return nil, nil, err
		}
		if err = group.Authorize(before, change); err != nil {
			return nil, nil, err
		}

		after, err = s.store.ApplyGroupChange(ctx, groupID, change)
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return nil, nil, err
		}
		s.logger.Debug("group changed concurrently, re-checking",
			zap.String("group_id", groupID),
			zap.String("op", change.Op.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, nil, apperror.Internal(fmt.Errorf("%s on %s: %w", change.Op, groupID, repo.ErrConflict))
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// Profile resolves userID, falling back to a bare profile when the directory
// has no entry or cannot be reached.
func (s *ChatService) Profile(ctx context.Context, userID string) model.Profile {
	profiles, err := s.directory.FindParticipantProfiles(ctx, []string{userID})
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	if p, ok := profiles[userID]; ok {
		return p
	}
	return model.Profile{UserID: userID}
}

// DisplayName is the user's name for notification texts, "admin" when the
// directory has none.
func (s *ChatService) DisplayName(ctx context.Context, userID string) string {
	if p := s.Profile(ctx, userID); p.Name != "" {
		return p.Name
	}
	return "admin"
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (s *ChatService) loadGroup(ctx context.Context, groupID string) (*model.Chat, error) {
	chat, err := s.store.FindChat(ctx, groupID)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil, apperror.NotFound("Group not found!")
	}
	if err != nil {
		return nil, err
	}
	if !chat.IsGroup {
		return nil, apperror.Validation("Chat is not a group.")
	}
	return chat, nil
}

func validateContent(content string, contentType model.ContentType) (model.ContentType, error) {
	if strings.TrimSpace(content) == "" {
		return "", apperror.Validation("Message content is required.")
	}
	if contentType == "" {
		return model.ContentText, nil
	}
	if !contentType.Valid() {
		return "", apperror.Validation("Unsupported content type.")
	}
	return contentType, nil
}
