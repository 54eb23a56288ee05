package models

import "time"

type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// NormalizeRole maps unknown or empty roles to member.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleMember, RoleManager, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}

// HasBlanketAccess reports whether the role may act on any task.
func (r Role) HasBlanketAccess() bool {
	return r == RoleManager || r == RoleAdmin
}

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Avatar       string     `json:"avatar,omitempty"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	DeletedAt    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Public returns the identity fields that may be shown to other users.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

type PublicUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
