package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	MonitorStatusPending = "pending"
	MonitorStatusUp      = "up"
	MonitorStatusDown    = "down"
	MonitorStatusPaused  = "paused"
)

// Monitor is a single probed endpoint. A monitor references at most one
// alert; the alert list accessor exists so callers do not bake that
// limitation in.
type Monitor struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OwnerKind       string         `gorm:"type:varchar(10);not null;default:'user';index:idx_monitors_owner,priority:1" json:"owner_kind"`
	OwnerID         uint           `gorm:"not null;index:idx_monitors_owner,priority:2" json:"owner_id"`
	Name            string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	URL             string         `gorm:"type:varchar(2048);not null" json:"url" validate:"required,url,max=2048"`
	IntervalSeconds int            `gorm:"not null;default:300" json:"interval_seconds" validate:"min=30,max=86400"`
	Status          string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Slug            string         `gorm:"type:varchar(32);uniqueIndex" json:"slug"`
	AlertID         *uint          `gorm:"index" json:"alert_id,omitempty"`
	Alert           *Alert         `gorm:"foreignKey:AlertID" json:"alert,omitempty"`
	LastCheckedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"last_checked_at,omitempty"`
	LastStatusCode  int            `gorm:"default:0" json:"last_status_code"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Monitor) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// Alerts returns the alerts attached to this monitor. Today that is at most
// one record; callers that iterate stay correct if monitors ever hold more.
func (m *Monitor) Alerts() []*Alert {
	if m.Alert == nil {
		return nil
	}
	return []*Alert{m.Alert}
}

// IsPaused reports whether the monitor is excluded from scheduling.
func (m *Monitor) IsPaused() bool {
	return m.Status == MonitorStatusPaused
}

// Alphabet for status-page slugs (62 characters: 0-9, a-z, A-Z).
const slugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateSlug creates a cryptographically secure random Base62 slug for the
// monitor's public status page.
func GenerateSlug(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid slug length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	slug := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			slug[written] = slugAlphabet[int(b)%len(slugAlphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(slug), nil
}
