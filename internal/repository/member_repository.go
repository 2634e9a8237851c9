package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/database"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

const memberColumns = `chat_id, name, role, COALESCE(group_name, '') AS group_name, created_at, updated_at`

// MemberRepository reads group membership for students and teachers.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs the repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindByChatID loads a member or returns sql.ErrNoRows.
func (r *MemberRepository) FindByChatID(ctx context.Context, chatID string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE chat_id = $1`
	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, chatID); err != nil {
		return nil, err
	}
	return &member, nil
}

// ListStudentsByGroup returns students of group ordered by name.
func (r *MemberRepository) ListStudentsByGroup(ctx context.Context, group string) ([]models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE role = 'student' AND group_name = $1 ORDER BY name, chat_id`
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, group); err != nil {
		return nil, fmt.Errorf("list group students: %w", err)
	}
	return members, nil
}

// ListTeacherGroups returns the groups taught by teacherID.
func (r *MemberRepository) ListTeacherGroups(ctx context.Context, teacherID string) ([]models.TeacherGroup, error) {
	const query = `SELECT teacher_id, group_name, COALESCE(subject, '') AS subject FROM teacher_groups WHERE teacher_id = $1 ORDER BY group_name`
	var groups []models.TeacherGroup
	if err := r.db.SelectContext(ctx, &groups, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher groups: %w", err)
	}
	return groups, nil
}

// Create registers a new member. A duplicate chat id maps to ErrConflict.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	if member == nil {
		return fmt.Errorf("member payload is nil")
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now

	const query = `
INSERT INTO members (chat_id, name, role, group_name, created_at, updated_at)
VALUES (:chat_id, :name, :role, NULLIF(:group_name, ''), :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		if database.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "member already registered")
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// AssignTeacherGroup links a teacher to a group, replacing the subject if already linked.
func (r *MemberRepository) AssignTeacherGroup(ctx context.Context, link models.TeacherGroup) error {
	const query = `
INSERT INTO teacher_groups (teacher_id, group_name, subject)
VALUES (:teacher_id, :group_name, NULLIF(:subject, ''))
ON CONFLICT (teacher_id, group_name) DO UPDATE SET subject = EXCLUDED.subject`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("assign teacher group: %w", err)
	}
	return nil
}
