package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamspace/internal/middleware"
	"github.com/charlesng35/teamspace/internal/models"
	"github.com/charlesng35/teamspace/internal/services"
	"github.com/charlesng35/teamspace/pkg/domains"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
	"github.com/charlesng35/teamspace/pkg/response"
)

// TeamHandler serves the signed-in user's team and its administration endpoints.
type TeamHandler struct {
	teams   *services.TeamService
	admin   *services.AdminService
	audit   *services.AuditService
	baseURL string
}

type claimSubdomainRequest struct {
	Subdomain string `json:"subdomain" validate:"required"`
}

type teamPayload struct {
	Team *models.Team `json:"team"`
	URL  string       `json:"url"`
}

func NewTeamHandler(teams *services.TeamService, admin *services.AdminService, audit *services.AuditService, baseURL string) *TeamHandler {
	return &TeamHandler{teams: teams, admin: admin, audit: audit, baseURL: baseURL}
}

// GET /api/team
func (h *TeamHandler) Current(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	team, err := h.teams.GetByID(requestContext(c), user.TeamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"team": team,
		"url":  domains.TeamAddress(h.baseURL, team.Subdomain),
		"user": user,
	})
}

// POST /api/team/subdomain
func (h *TeamHandler) ClaimSubdomain(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var body claimSubdomainRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.teams.ClaimSubdomain(requestContext(c), user.TeamID, body.Subdomain)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teamPayload{Team: team, URL: domains.TeamAddress(h.baseURL, team.Subdomain)})
}

// GET /api/team/audit
func (h *TeamHandler) Audit(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	entries, err := h.audit.ListForTeam(requestContext(c), user.TeamID, parseIntQuery(c, "limit", 50, 200))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// POST /api/team/users/:id/promote
func (h *TeamHandler) Promote(c *gin.Context) {
	h.changeMember(c, h.admin.Promote)
}

// POST /api/team/users/:id/demote
func (h *TeamHandler) Demote(c *gin.Context) {
	h.changeMember(c, h.admin.Demote)
}

// POST /api/team/users/:id/suspend
func (h *TeamHandler) Suspend(c *gin.Context) {
	h.changeMember(c, h.admin.Suspend)
}

// POST /api/team/users/:id/activate
func (h *TeamHandler) Activate(c *gin.Context) {
	h.changeMember(c, h.admin.Activate)
}

type memberChange func(ctx context.Context, actor *models.User, userID string) (*models.User, error)

func (h *TeamHandler) changeMember(c *gin.Context, change memberChange) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	user, err := change(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
