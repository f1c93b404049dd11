package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/teamspace/internal/models"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
)

var (
	// ErrLastAdmin blocks removing the final administrator of a team.
	ErrLastAdmin = apperrors.New("TEAM_LAST_ADMIN", "At least one admin is required", http.StatusConflict)
	// ErrSelfSuspension blocks an administrator from suspending themselves.
	ErrSelfSuspension = apperrors.New("USER_SELF_SUSPENSION", "Unable to suspend the current user", http.StatusBadRequest)
)

// AdminService performs administrative changes to team members while keeping at
// least one administrator per team.
type AdminService struct {
	db           *gorm.DB
	auditService *AuditService
	now          func() time.Time
}

// NewAdminService constructs an AdminService instance.
func NewAdminService(db *gorm.DB, auditService *AuditService) (*AdminService, error) {
	if db == nil {
		return nil, errors.New("admin service: db is required")
	}
	return &AdminService{
		db:           db,
		auditService: auditService,
		now:          time.Now,
	}, nil
}

// Promote grants administrator rights.
func (s *AdminService) Promote(ctx context.Context, actor *models.User, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if err := authorizeAdmin(actor); err != nil {
		return nil, err
	}

	target, err := s.loadMember(ctx, s.db, actor, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND team_id = ?", target.ID, actor.TeamID).
		Update("is_admin", true).Error; err != nil {
		return nil, fmt.Errorf("admin service: promote user: %w", err)
	}
	target.IsAdmin = true

	s.audit(ctx, actor, "user.promote", target.ID, "success")
	return target, nil
}

// Demote revokes administrator rights unless the target is the last administrator
// of the team. Suspended administrators still count.
func (s *AdminService) Demote(ctx context.Context, actor *models.User, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if err := authorizeAdmin(actor); err != nil {
		return nil, err
	}

	var target *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.loadMember(ctx, tx, actor, userID)
		if err != nil {
			return err
		}

		adminQuery := tx.Model(&models.User{}).
			Where("team_id = ? AND is_admin = ? AND id <> ?", actor.TeamID, true, member.ID)
		if tx.Dialector.Name() != "sqlite" {
			adminQuery = adminQuery.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var others []string
		if err := adminQuery.Pluck("id", &others).Error; err != nil {
			return fmt.Errorf("admin service: count admins: %w", err)
		}
		if len(others) == 0 {
			return ErrLastAdmin
		}

		if err := tx.Model(&models.User{}).
			Where("id = ? AND team_id = ?", member.ID, actor.TeamID).
			Update("is_admin", false).Error; err != nil {
			return fmt.Errorf("admin service: demote user: %w", err)
		}
		member.IsAdmin = false
		target = member
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLastAdmin) {
			s.audit(ctx, actor, "user.demote", userID, "denied")
		}
		return nil, err
	}

	s.audit(ctx, actor, "user.demote", target.ID, "success")
	return target, nil
}

// Suspend blocks a member. Administrators cannot suspend themselves.
func (s *AdminService) Suspend(ctx context.Context, actor *models.User, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if err := authorizeAdmin(actor); err != nil {
		return nil, err
	}
	if actor.ID == userID {
		s.audit(ctx, actor, "user.suspend", userID, "denied")
		return nil, ErrSelfSuspension
	}

	target, err := s.loadMember(ctx, s.db, actor, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	actorID := actor.ID
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND team_id = ?", target.ID, actor.TeamID).
		Updates(map[string]any{
			"suspended_at":    now,
			"suspended_by_id": actorID,
		}).Error; err != nil {
		return nil, fmt.Errorf("admin service: suspend user: %w", err)
	}
	target.SuspendedAt = &now
	target.SuspendedByID = &actorID

	s.audit(ctx, actor, "user.suspend", target.ID, "success")
	return target, nil
}

// Activate lifts a suspension.
func (s *AdminService) Activate(ctx context.Context, actor *models.User, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if err := authorizeAdmin(actor); err != nil {
		return nil, err
	}

	target, err := s.loadMember(ctx, s.db, actor, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND team_id = ?", target.ID, actor.TeamID).
		Updates(map[string]any{
			"suspended_at":    nil,
			"suspended_by_id": nil,
		}).Error; err != nil {
		return nil, fmt.Errorf("admin service: activate user: %w", err)
	}
	target.SuspendedAt = nil
	target.SuspendedByID = nil

	s.audit(ctx, actor, "user.activate", target.ID, "success")
	return target, nil
}

func authorizeAdmin(actor *models.User) error {
	if actor == nil || actor.ID == "" {
		return apperrors.ErrUnauthorized
	}
	if !actor.IsAdmin || actor.IsSuspended() {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *AdminService) loadMember(ctx context.Context, db *gorm.DB, actor *models.User, userID string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).
		Where("id = ? AND team_id = ?", userID, actor.TeamID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("admin service: load user: %w", err)
	}
	return &user, nil
}

func (s *AdminService) audit(ctx context.Context, actor *models.User, action, target, result string) {
	actorID := actor.ID
	recordAudit(s.auditService, ctx, AuditEntry{
		TeamID:   actor.TeamID,
		ActorID:  &actorID,
		Action:   action,
		Resource: target,
		Result:   result,
	})
}
