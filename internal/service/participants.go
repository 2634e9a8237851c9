package service

import (
	"context"
	"slices"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type memberDirectory interface {
	ListStudentsByGroup(ctx context.Context, group string) ([]models.Member, error)
	ListTeacherGroups(ctx context.Context, teacherID string) ([]models.TeacherGroup, error)
}

// ParticipantService derives who is affected by a series. Voters and notification recipients
// are separate sets: the teacher is informed of every change but never votes.
type ParticipantService struct {
	members memberDirectory
}

func NewParticipantService(members memberDirectory) *ParticipantService {
	return &ParticipantService{members: members}
}

// Participants returns the teacher and the students of the series' group.
func (s *ParticipantService) Participants(ctx context.Context, series models.Series) (models.Participants, error) {
	students, err := s.members.ListStudentsByGroup(ctx, series.GroupName)
	if err != nil {
		return models.Participants{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group members")
	}
	ids := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ChatID)
	}
	return models.Participants{TeacherID: series.TeacherID, Students: ids}, nil
}

// Voters are the students of the group other than the requester.
func (s *ParticipantService) Voters(ctx context.Context, series models.Series, requesterID string) ([]string, error) {
	participants, err := s.Participants(ctx, series)
	if err != nil {
		return nil, err
	}
	return without(participants.Students, requesterID), nil
}

// Recipients are everyone attached to the series except the actor.
func (s *ParticipantService) Recipients(ctx context.Context, series models.Series, actorID string) ([]string, error) {
	participants, err := s.Participants(ctx, series)
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, len(participants.Students)+1)
	if participants.TeacherID != "" {
		all = append(all, participants.TeacherID)
	}
	for _, id := range participants.Students {
		if !slices.Contains(all, id) {
			all = append(all, id)
		}
	}
	return without(all, actorID), nil
}

// CanAct reports whether actor may request changes on series.
func (s *ParticipantService) CanAct(actor models.Actor, series models.Series) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return actor.ID == series.TeacherID
	case models.RoleStudent:
		return actor.GroupName != "" && actor.GroupName == series.GroupName
	default:
		return false
	}
}

// CanManage reports whether actor may override without a vote, such as restoring a lesson.
func (s *ParticipantService) CanManage(actor models.Actor, series models.Series) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && actor.ID == series.TeacherID)
}

// TeacherGroups lists the group names a teacher teaches. Series ownership also counts.
func (s *ParticipantService) TeacherGroups(ctx context.Context, teacherID string, owned []models.Series) ([]string, error) {
	links, err := s.members.ListTeacherGroups(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher groups")
	}
	groups := make([]string, 0, len(links)+len(owned))
	for _, link := range links {
		if !slices.Contains(groups, link.GroupName) {
			groups = append(groups, link.GroupName)
		}
	}
	for _, series := range owned {
		if !slices.Contains(groups, series.GroupName) {
			groups = append(groups, series.GroupName)
		}
	}
	slices.Sort(groups)
	return groups, nil
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
