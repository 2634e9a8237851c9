package models

import "time"

// Role identifies the kind of participant.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Member is a messaging-transport identity known to the service.
type Member struct {
	ChatID    string    `db:"chat_id" json:"chat_id"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	GroupName string    `db:"group_name" json:"group_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherGroup links a teacher to a group they teach.
type TeacherGroup struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	GroupName string `db:"group_name" json:"group_name"`
	Subject   string `db:"subject" json:"subject,omitempty"`
}

// Participants splits the people affected by a series.
type Participants struct {
	TeacherID string
	Students  []string
}

// Actor is the authenticated member behind an operation.
type Actor struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	GroupName string `json:"group_name,omitempty"`
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsTeacher() bool { return a.Role == RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
