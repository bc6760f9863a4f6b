// Package authz is the single source of truth for who may mutate what.
// Every mutating handler consults these functions instead of repeating
// ownership checks inline.
package authz

import (
	"github.com/taskforge-dev/taskforge/internal/middleware"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
)

func isAdmin(caller middleware.AuthenticatedUser) bool {
	return caller.Role == types.RoleAdmin
}

// CanUpdateTask allows the creator, the assignee, or a global admin.
func CanUpdateTask(caller middleware.AuthenticatedUser, task models.Task) bool {
	if isAdmin(caller) || task.CreatedByID == caller.ID {
		return true
	}
	return task.AssignedTo != nil && *task.AssignedTo == caller.ID
}

// CanDeleteTask is narrower than update: the assignee may not delete.
func CanDeleteTask(caller middleware.AuthenticatedUser, task models.Task) bool {
	return isAdmin(caller) || task.CreatedByID == caller.ID
}

// CanManageTeam covers team update and membership add/remove: requires an
// owner- or admin-role membership, or global admin.
func CanManageTeam(caller middleware.AuthenticatedUser, membership *models.TeamMembership) bool {
	if isAdmin(caller) {
		return true
	}
	if membership == nil {
		return false
	}
	return membership.Role == types.TeamRoleOwner || membership.Role == types.TeamRoleAdmin
}

// CanDeleteTeam requires team ownership or global admin.
func CanDeleteTeam(caller middleware.AuthenticatedUser, team models.Team) bool {
	return isAdmin(caller) || team.OwnerID == caller.ID
}

// CanViewTeam allows any member or a global admin.
func CanViewTeam(caller middleware.AuthenticatedUser, membership *models.TeamMembership) bool {
	return isAdmin(caller) || membership != nil
}

// CanModifyComment covers both update and delete: author or global admin.
func CanModifyComment(caller middleware.AuthenticatedUser, comment models.Comment) bool {
	return isAdmin(caller) || comment.AuthorID == caller.ID
}

// CanDeleteAttachment allows the uploader or a global admin. Attachments
// are otherwise immutable.
func CanDeleteAttachment(caller middleware.AuthenticatedUser, attachment models.Attachment) bool {
	return isAdmin(caller) || attachment.UploaderID == caller.ID
}
