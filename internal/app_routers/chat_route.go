package approuters

import (
	"Chatline/internal/configuration"
	"Chatline/internal/handler"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ChatHandler

	chatRoute := router.Group("/chat/api",
		handler.Authenticate(container.Verifier),
		handler.RateLimit(container.Config.RateLimit.RequestsPerSecond),
	)
	{
		chatRoute.POST("/create-group", h.CreateGroup)
		chatRoute.GET("/chats", h.GetChats)
		chatRoute.GET("/group-details/:groupId", h.GetGroupDetails)
		chatRoute.PUT("/update-group-name", h.UpdateGroupName)
		chatRoute.POST("/add-participants", h.AddParticipants)
		chatRoute.DELETE("/remove-participant", h.RemoveParticipant)
		chatRoute.PATCH("/make-admin", h.MakeAdmin)
		chatRoute.DELETE("/remove-admin", h.RemoveAdmin)
		chatRoute.DELETE("/delete-group/:groupId", h.DeleteGroup)
		chatRoute.GET("/messages/:chatId", h.GetMessages)
	}
}
