// Package group holds the membership rules that gate every group mutation.
// Everything here is a pure function over a loaded chat so that stores can
// re-run the same checks atomically at write time.
package group

import (
	"strings"

	"Chatline/internal/apperror"
	"Chatline/internal/model"
)

type Op int

const (
	OpAddParticipants Op = iota + 1
	OpRemoveParticipant
	OpPromoteAdmin
	OpDemoteAdmin
	OpRename
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpAddParticipants:
		return "add_participants"
	case OpRemoveParticipant:
		return "remove_participant"
	case OpPromoteAdmin:
		return "promote_admin"
	case OpDemoteAdmin:
		return "demote_admin"
	case OpRename:
		return "rename"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Change describes one group mutation requested by Actor.
type Change struct {
	Op           Op
	Actor        string
	Target       string   // remove, promote, demote
	Participants []string // add
	Name         string   // rename
}

func AddParticipants(actor string, ids []string) Change {
	return Change{Op: OpAddParticipants, Actor: actor, Participants: model.UniqueIDs(ids...)}
}

func RemoveParticipant(actor, target string) Change {
	return Change{Op: OpRemoveParticipant, Actor: actor, Target: target}
}

func PromoteAdmin(actor, target string) Change {
	return Change{Op: OpPromoteAdmin, Actor: actor, Target: target}
}

func DemoteAdmin(actor, target string) Change {
	return Change{Op: OpDemoteAdmin, Actor: actor, Target: target}
}

func Rename(actor, name string) Change {
	return Change{Op: OpRename, Actor: actor, Name: strings.TrimSpace(name)}
}

func Delete(actor string) Change {
	return Change{Op: OpDelete, Actor: actor}
}

func IsAdmin(chat *model.Chat, userID string) bool {
	return chat != nil && model.Contains(chat.Admins, userID)
}

func IsParticipant(chat *model.Chat, userID string) bool {
	return chat != nil && model.Contains(chat.Participants, userID)
}

// Authorize checks change against the current state of chat.
func Authorize(chat *model.Chat, change Change) error {
	if chat == nil {
		return apperror.NotFound("Group not found!")
	}
	if !chat.IsGroup {
		return apperror.Validation("Chat is not a group.")
	}
	if !IsAdmin(chat, change.Actor) {
		return apperror.Unauthorized("You are not an admin of group.")
	}

	switch change.Op {
	case OpAddParticipants:
		if len(change.Participants) == 0 {
			return apperror.Validation("At least one participant is required.")
		}
	case OpRemoveParticipant:
		if !IsParticipant(chat, change.Target) {
			return apperror.InvalidTarget("User is not a participant of group.")
		}
		if IsAdmin(chat, change.Target) && len(chat.Admins) == 1 {
			return apperror.InvariantViolation("Group must keep at least one admin.")
		}
	case OpPromoteAdmin:
		if !IsParticipant(chat, change.Target) {
			return apperror.InvalidTarget("User is not a participant of group.")
		}
	case OpDemoteAdmin:
		if !IsParticipant(chat, change.Target) {
			return apperror.InvalidTarget("User is not a participant of group.")
		}
		if !IsAdmin(chat, change.Target) {
			return apperror.InvalidTarget("User is not an admin of group.")
		}
		if len(chat.Admins) == 1 {
			return apperror.InvariantViolation("Group must keep at least one admin.")
		}
	case OpRename:
		if change.Name == "" {
			return apperror.Validation("Group name is required!")
		}
	case OpDelete:
	default:
		return apperror.Validation("Unknown group operation.")
	}
	return nil
}

// Apply returns a copy of chat with change applied. The change must already
// have passed Authorize. Delete leaves the copy untouched; removing the
// document is the store's job.
func Apply(chat *model.Chat, change Change) *model.Chat {
	next := chat.Clone()
	switch change.Op {
	case OpAddParticipants:
		next.Participants = model.UniqueIDs(append(next.Participants, change.Participants...)...)
	case OpRemoveParticipant:
		next.Participants = without(next.Participants, change.Target)
		next.Admins = without(next.Admins, change.Target)
	case OpPromoteAdmin:
		next.Admins = model.UniqueIDs(append(next.Admins, change.Target)...)
	case OpDemoteAdmin:
		next.Admins = without(next.Admins, change.Target)
	case OpRename:
		next.Name = change.Name
	}
	return next
}

// NewParticipants splits ids into those not yet in chat and those already in it.
func NewParticipants(chat *model.Chat, ids []string) (added, existing []string) {
	for _, id := range model.UniqueIDs(ids...) {
		if IsParticipant(chat, id) {
			existing = append(existing, id)
		} else {
			added = append(added, id)
		}
	}
	return added, existing
}

func without(set []string, id string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
