package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GroupRepository reads course groups and memberships owned by the platform.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// UserGroups returns the groups of the course the user currently belongs to.
func (r *GroupRepository) UserGroups(ctx context.Context, courseID, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id
		 FROM course_groups g JOIN group_members m ON m.group_id = g.id
		 WHERE g.course_id = $1 AND m.user_id = $2
		 ORDER BY g.id`, courseID, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// CountInCourse returns how many of ids are groups of the course.
func (r *GroupRepository) CountInCourse(ctx context.Context, courseID int64, ids []int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM course_groups WHERE course_id = $1 AND id = ANY($2)`,
		courseID, ids,
	).Scan(&n)
	return n, err
}
