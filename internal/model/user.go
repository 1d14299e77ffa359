package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole is the closed set of roles a user can hold
type UserRole string

const (
	RoleAdmin     UserRole = "Admin"
	RoleAgent     UserRole = "Agent"
	RoleManager   UserRole = "Manager"
	RoleTreasurer UserRole = "Treasurer"
	RoleSecretary UserRole = "Secretary"
	RolePresident UserRole = "President"
)

// OfficerRoles are the society-side roles bound to exactly one society
var OfficerRoles = []UserRole{RoleManager, RoleTreasurer, RoleSecretary, RolePresident}

// AllRoles lists every known role
var AllRoles = []UserRole{RoleAdmin, RoleAgent, RoleManager, RoleTreasurer, RoleSecretary, RolePresident}

func (r UserRole) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r UserRole) IsOfficer() bool {
	for _, role := range OfficerRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is an account. Officers carry AssociatedSocietyID, Agents carry assignments, Admins carry neither.
type User struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string     `gorm:"type:varchar(255);not null" json:"name"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone               string     `gorm:"type:varchar(20)" json:"phone"`
	Password            string     `gorm:"type:varchar(255);not null" json:"-"`
	Role                UserRole   `gorm:"type:varchar(20);not null;index" json:"role"`
	AssociatedSocietyID *uuid.UUID `gorm:"type:uuid;index" json:"associatedSocietyId"`
	IsActive            bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// AgentAssignment links an Agent to one of the societies they look after
type AgentAssignment struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	SocietyID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"societyId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
