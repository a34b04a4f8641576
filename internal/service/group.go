package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
)

// GroupService manages prediction groups and memberships.
type GroupService struct {
	pool   *pgxpool.Pool
	groups repository.GroupRepository
	logger *slog.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(pool *pgxpool.Pool, groups repository.GroupRepository, logger *slog.Logger) *GroupService {
	return &GroupService{pool: pool, groups: groups, logger: logger}
}

// CreateGroupInput holds a new group request.
type CreateGroupInput struct {
	Name string `json:"name"`
}

// Create creates a group and enrolls the creator as its first member.
func (s *GroupService) Create(ctx context.Context, ownerID uuid.UUID, input CreateGroupInput) (*domain.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrValidation("group name is required")
	}
	if len(name) > 120 {
		return nil, domain.ErrValidation("group name must be at most 120 characters")
	}

	g := &domain.Group{ID: uuid.New(), Name: name, OwnerID: ownerID}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := s.groups.Create(ctx, tx, g); err != nil {
		return nil, domain.ErrInternal("create group", err)
	}
	if err := s.groups.Join(ctx, tx, g.ID, ownerID); err != nil {
		return nil, domain.ErrInternal("enroll owner", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit transaction", err)
	}

	s.logger.Info("group created",
		slog.String("group_id", g.ID.String()),
		slog.String("owner_id", ownerID.String()))
	return g, nil
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	g, err := s.groups.FindByID(ctx, s.pool, groupID)
	if err != nil {
		return nil, domain.ErrInternal("load group", err)
	}
	if g == nil {
		return nil, domain.ErrNotFound("group", groupID.String())
	}
	return g, nil
}

// Join enrolls the caller in a group; rejoining reactivates the membership.
func (s *GroupService) Join(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.groups.Join(ctx, s.pool, groupID, userID); err != nil {
		return domain.ErrInternal("join group", err)
	}
	s.logger.Info("group joined",
		slog.String("group_id", groupID.String()),
		slog.String("user_id", userID.String()))
	return nil
}

// Leave deactivates the caller's membership. Existing predictions and
// settled points stay on the board.
func (s *GroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.groups.Leave(ctx, s.pool, groupID, userID); err != nil {
		return err
	}
	s.logger.Info("group left",
		slog.String("group_id", groupID.String()),
		slog.String("user_id", userID.String()))
	return nil
}
