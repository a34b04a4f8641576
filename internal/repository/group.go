package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pitchside/contest/internal/domain"
)

type groupRepo struct{}

// NewGroupRepository returns a pgx-backed GroupRepository.
func NewGroupRepository() GroupRepository {
	return &groupRepo{}
}

func (r *groupRepo) Create(ctx context.Context, db DBTX, g *domain.Group) error {
	_, err := db.Exec(ctx,
		`INSERT INTO groups (id, name, owner_id, created_at) VALUES ($1, $2, $3, now())`,
		g.ID, g.Name, g.OwnerID)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (r *groupRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Group, error) {
	var g domain.Group
	err := db.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}

func (r *groupRepo) Join(ctx context.Context, db DBTX, groupID, userID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		INSERT INTO group_memberships (group_id, user_id, active, joined_at)
		VALUES ($1, $2, true, now())
		ON CONFLICT (group_id, user_id) DO UPDATE SET
			active = true, joined_at = now(), left_at = NULL`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	return nil
}

func (r *groupRepo) Leave(ctx context.Context, db DBTX, groupID, userID uuid.UUID) error {
	tag, err := db.Exec(ctx, `
		UPDATE group_memberships SET active = false, left_at = now()
		WHERE group_id = $1 AND user_id = $2 AND active`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("membership", groupID.String()+"/"+userID.String())
	}
	return nil
}

func (r *groupRepo) IsActiveMember(ctx context.Context, db DBTX, groupID, userID uuid.UUID) (bool, error) {
	var active bool
	err := db.QueryRow(ctx,
		`SELECT active FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID, userID).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}
	return active, nil
}
