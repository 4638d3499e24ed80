package models

import (
	"time"

	"gorm.io/gorm"
)

// Team is the shared-billing owner kind: members manage monitors together
// and the team holds its own entitlement and integrations.
type Team struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	CreatorID   uint           `gorm:"not null;index" json:"creator_id"`
	Entitlement Entitlement    `gorm:"embedded" json:"entitlement"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Team) OwnerRef() OwnerRef {
	return OwnerRef{Kind: OwnerKindTeam, ID: t.ID}
}

func (t *Team) GetEntitlement() Entitlement {
	return t.Entitlement
}

func (t *Team) SetEntitlement(e Entitlement) {
	t.Entitlement = e
}

// TeamMember links users to teams.
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"not null;index:ux_team_members_team_user,unique,priority:1" json:"team_id"`
	UserID    uint      `gorm:"not null;index:ux_team_members_team_user,unique,priority:2" json:"user_id"`
	Role      string    `gorm:"type:varchar(50);default:'member'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
