package event

// Chat Event Types - Client to Server
const (
	// EventSendDirectMessage - Send a message to one user
	EventSendDirectMessage = "send-direct-message"

	// EventSendGroupMessage - Send a message to a group
	EventSendGroupMessage = "send-group-message"

	// EventMessageSeen - Mark a message as seen
	EventMessageSeen = "message-seen"

	// EventAddParticipants - Admin adds users to a group
	EventAddParticipants = "add-participants"

	// EventRemoveUser - Admin removes a user from a group
	EventRemoveUser = "remove-user"

	// EventMakeAdmin - Admin promotes a participant
	EventMakeAdmin = "make-admin"

	// EventRemoveAdmin - Admin demotes another admin
	EventRemoveAdmin = "remove-admin"
)

// Chat Event Types - Server to Client
//
// send-direct-message, send-group-message and message-seen are reused in the
// outbound direction with the payloads below.
const (
	// EventMessageDelivered - Notify sender that a recipient received a message
	EventMessageDelivered = "message-delivered"

	// EventUserAdded - Notify a user they were added to a group
	EventUserAdded = "user-added"

	// EventUserRemoved - Notify a user they were removed from a group
	EventUserRemoved = "user-removed"

	// EventMadeAdmin - Notify a user they were promoted
	EventMadeAdmin = "made-admin"

	// EventAdminRemoved - Notify a user they were demoted
	EventAdminRemoved = "admin-removed"

	// EventError - Report a failed event to the originating connection
	EventError = "error"
)

// Group notification texts
const (
	NotifyUserAdded    = "You are added in %s group by %s"
	NotifyUserRemoved  = "You have been removed from %s group by %s"
	NotifyMadeAdmin    = "You are now an admin of %s"
	NotifyAdminRemoved = "You are no longer an admin of %s"
)
