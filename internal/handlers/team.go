package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
	"gorm.io/gorm"
)

type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

type TeamResponse struct {
	ID          uint                   `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	OwnerID     uint                   `json:"owner_id"`
	Members     []types.MemberResponse `json:"members,omitempty"`
}

// findMembership returns the caller's membership in a team, or nil when the
// caller is not a member.
func findMembership(teamID, userID uint) (*models.TeamMembership, error) {
	var membership models.TeamMembership

	err := db.DB.Where("team_id = ? AND user_id = ?", teamID, userID).First(&membership).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &membership, nil
}

func teamResponse(team models.Team) TeamResponse {
	return TeamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		OwnerID:     team.OwnerID,
	}
}

func CreateTeam(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	var req CreateTeamRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Team name is required"))
		return
	}

	team := models.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     currentUser.ID,
	}

	// The owner membership is part of the same transaction so a team can
	// never exist without its owner on the roster.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}

		membership := models.TeamMembership{
			UserID: currentUser.ID,
			TeamID: team.ID,
			Role:   types.TeamRoleOwner,
		}

		return tx.Create(&membership).Error
	})

	if err != nil {
		log.Printf("Failed to create team: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to create team"))
		return
	}

	ctx.JSON(http.StatusCreated, types.Success(teamResponse(team)))
}

func ListTeams(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	var teams []models.Team

	err = db.DB.
		Joins("JOIN team_memberships ON team_memberships.team_id = teams.id").
		Where("team_memberships.user_id = ? AND team_memberships.deleted_at IS NULL", currentUser.ID).
		Find(&teams).Error

	if err != nil {
		log.Printf("Failed to list teams: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve teams"))
		return
	}

	response := make([]TeamResponse, 0, len(teams))

	for _, team := range teams {
		response = append(response, teamResponse(team))
	}

	ctx.JSON(http.StatusOK, types.Success(response))
}

func GetTeam(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	teamID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
		} else {
			log.Printf("Failed to fetch team: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		}
		return
	}

	membership, err := findMembership(team.ID, currentUser.ID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if !authz.CanViewTeam(currentUser, membership) {
		ctx.JSON(http.StatusForbidden, types.Error("You are not a member of this team"))
		return
	}

	var memberships []models.TeamMembership

	if err := db.DB.Preload("User").Where("team_id = ?", team.ID).Find(&memberships).Error; err != nil {
		log.Printf("Failed to fetch team members: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	response := teamResponse(team)
	response.Members = make([]types.MemberResponse, 0, len(memberships))

	for _, m := range memberships {
		response.Members = append(response.Members, types.MemberResponse{
			ID:       m.User.ID,
			Name:     m.User.Name,
			Email:    m.User.Email,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, types.Success(response))
}

func UpdateTeam(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	teamID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var req UpdateTeamRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid request"))
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
		} else {
			log.Printf("Failed to fetch team: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		}
		return
	}

	membership, err := findMembership(team.ID, currentUser.ID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if !authz.CanManageTeam(currentUser, membership) {
		ctx.JSON(http.StatusForbidden, types.Error("Only team owners and admins can update the team"))
		return
	}

	if req.Name != "" {
		team.Name = req.Name
	}
	team.Description = req.Description

	if err := db.DB.Save(&team).Error; err != nil {
		log.Printf("Failed to update team: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to update team"))
		return
	}

	ctx.JSON(http.StatusOK, types.Success(teamResponse(team)))
}

func DeleteTeam(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	teamID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
		} else {
			log.Printf("Failed to fetch team: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		}
		return
	}

	if !authz.CanDeleteTeam(currentUser, team) {
		ctx.JSON(http.StatusForbidden, types.Error("Only the team owner can delete the team"))
		return
	}

	// Removing memberships strips the team from every former member. Hard
	// delete: a tombstone row would block the user from ever rejoining a
	// team with the same id through the unique user/team index.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("team_id = ?", team.ID).Delete(&models.TeamMembership{}).Error; err != nil {
			return err
		}

		return tx.Delete(&team).Error
	})

	if err != nil {
		log.Printf("Failed to delete team: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to delete team"))
		return
	}

	ctx.JSON(http.StatusOK, types.SuccessMessage("Team deleted successfully"))
}

func AddMember(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	teamID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var req AddMemberRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("user_id is required"))
		return
	}

	if req.Role == "" {
		req.Role = types.TeamRoleMember
	}

	if req.Role != types.TeamRoleMember && req.Role != types.TeamRoleAdmin {
		ctx.JSON(http.StatusBadRequest, types.Error("Role must be member or admin"))
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
		} else {
			log.Printf("Failed to fetch team: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		}
		return
	}

	callerMembership, err := findMembership(team.ID, currentUser.ID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if !authz.CanManageTeam(currentUser, callerMembership) {
		ctx.JSON(http.StatusForbidden, types.Error("Only team owners and admins can add members"))
		return
	}

	var target models.User

	if err := db.DB.First(&target, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("User not found"))
		} else {
			log.Printf("Failed to fetch user: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve user"))
		}
		return
	}

	existing, err := findMembership(team.ID, target.ID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if existing != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("User is already a member of this team"))
		return
	}

	membership := models.TeamMembership{
		UserID: target.ID,
		TeamID: team.ID,
		Role:   req.Role,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		log.Printf("Failed to add member: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to add member"))
		return
	}

	ctx.JSON(http.StatusCreated, types.Success(types.MemberResponse{
		ID:       target.ID,
		Name:     target.Name,
		Email:    target.Email,
		Role:     membership.Role,
		JoinedAt: membership.CreatedAt,
	}))
}

func RemoveMember(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	teamID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	targetUserID, err := utils.ParamID(ctx, "user_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
		} else {
			log.Printf("Failed to fetch team: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		}
		return
	}

	callerMembership, err := findMembership(team.ID, currentUser.ID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if !authz.CanManageTeam(currentUser, callerMembership) {
		ctx.JSON(http.StatusForbidden, types.Error("Only team owners and admins can remove members"))
		return
	}

	// The owner stays no matter who asks. Transfer ownership or delete the
	// team instead.
	if targetUserID == team.OwnerID {
		ctx.JSON(http.StatusBadRequest, types.Error("The team owner cannot be removed from the team"))
		return
	}

	targetMembership, err := findMembership(team.ID, targetUserID)

	if err != nil {
		log.Printf("Failed to fetch membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve team"))
		return
	}

	if targetMembership == nil {
		ctx.JSON(http.StatusNotFound, types.Error("User is not a member of this team"))
		return
	}

	// Hard delete so the unique user/team index does not block re-adding.
	if err := db.DB.Unscoped().Delete(targetMembership).Error; err != nil {
		log.Printf("Failed to remove member: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to remove member"))
		return
	}

	ctx.JSON(http.StatusOK, types.SuccessMessage("Member removed successfully"))
}
