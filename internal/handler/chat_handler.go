package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"Chatline/internal/model"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomNotifier keeps live group rooms in step with REST group changes and
// notifies the affected users that are online.
type RoomNotifier interface {
	JoinOnline(chat *model.Chat)
	ParticipantsAdded(chat *model.Chat, added []string, actorName string)
	ParticipantRemoved(chat *model.Chat, userID, actorName string)
	AdminPromoted(chat *model.Chat, userID string)
	AdminDemoted(chat *model.Chat, userID string)
	Dissolve(groupID string)
}

type ChatHandler interface {
	CreateGroup(c *gin.Context)
	GetChats(c *gin.Context)
	GetGroupDetails(c *gin.Context)
	UpdateGroupName(c *gin.Context)
	AddParticipants(c *gin.Context)
	RemoveParticipant(c *gin.Context)
	MakeAdmin(c *gin.Context)
	RemoveAdmin(c *gin.Context)
	DeleteGroup(c *gin.Context)
	GetMessages(c *gin.Context)
}

type chatHandler struct {
	chats  *service.ChatService
	rooms  RoomNotifier
	logger *zap.Logger
}

func NewChatHandler(chats *service.ChatService, rooms RoomNotifier, logger *zap.Logger) ChatHandler {
	return &chatHandler{
		chats:  chats,
		rooms:  rooms,
		logger: logger,
	}
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type updateGroupNameRequest struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type addParticipantsRequest struct {
	GroupID      string   `json:"groupId"`
	Participants []string `json:"participants"`
}

type removeParticipantRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type adminRequest struct {
	GroupID string `json:"groupId"`
	AdminID string `json:"adminId"`
}

func (h *chatHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	chat, err := h.chats.CreateGroup(c.Request.Context(), currentUser(c), req.Name, req.Participants)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.rooms.JoinOnline(chat)
	respond(c, http.StatusCreated, chat, "Group created successfully.")
}

func (h *chatHandler) GetChats(c *gin.Context) {
	chats, err := h.chats.ListUserChats(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, chats, "Chats retrieved successfully.")
}

func (h *chatHandler) GetGroupDetails(c *gin.Context) {
	details, err := h.chats.GroupDetails(c.Request.Context(), currentUser(c), c.Param("groupId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, details, "Group details retrieved successfully.")
}

func (h *chatHandler) UpdateGroupName(c *gin.Context) {
	var req updateGroupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	chat, err := h.chats.RenameGroup(c.Request.Context(), currentUser(c), req.GroupID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, chat, "Group name updated successfully.")
}

func (h *chatHandler) AddParticipants(c *gin.Context) {
	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	ctx := c.Request.Context()
	actor := currentUser(c)
	res, err := h.chats.AddParticipants(ctx, actor, req.GroupID, req.Participants)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.rooms.ParticipantsAdded(res.Chat, res.Added, h.chats.DisplayName(ctx, actor))
	respond(c, http.StatusOK, res, fmt.Sprintf("New participants have been added to %s group.", res.Chat.Name))
}

func (h *chatHandler) RemoveParticipant(c *gin.Context) {
	var req removeParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" || req.UserID == "" {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	ctx := c.Request.Context()
	actor := currentUser(c)
	chat, err := h.chats.RemoveParticipant(ctx, actor, req.GroupID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.rooms.ParticipantRemoved(chat, req.UserID, h.chats.DisplayName(ctx, actor))
	respond(c, http.StatusOK, chat, "Participant removed successfully.")
}

func (h *chatHandler) MakeAdmin(c *gin.Context) {
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" || req.AdminID == "" {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	chat, err := h.chats.PromoteAdmin(c.Request.Context(), currentUser(c), req.GroupID, req.AdminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.rooms.AdminPromoted(chat, req.AdminID)
	respond(c, http.StatusCreated, chat, "Admin created successfully.")
}

func (h *chatHandler) RemoveAdmin(c *gin.Context) {
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GroupID == "" || req.AdminID == "" {
		respond(c, http.StatusBadRequest, nil, "Invalid request body.")
		return
	}

	chat, err := h.chats.DemoteAdmin(c.Request.Context(), currentUser(c), req.GroupID, req.AdminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.rooms.AdminDemoted(chat, req.AdminID)
	respond(c, http.StatusOK, chat, "Admin removed successfully.")
}

func (h *chatHandler) DeleteGroup(c *gin.Context) {
	chat, err := h.chats.DeleteGroup(c.Request.Context(), currentUser(c), c.Param("groupId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	groupID := chat.ID.Hex()
	h.rooms.Dissolve(groupID)
	respond(c, http.StatusOK, gin.H{"groupId": groupID}, "Group deleted successfully.")
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		respond(c, http.StatusBadRequest, nil, "Invalid page number")
		return
	}

	msgs, err := h.chats.History(c.Request.Context(), currentUser(c), c.Param("chatId"), pageNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgs, "Messages retrieved successfully.")
}
