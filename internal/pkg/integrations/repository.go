package integrations

import (
	"github.com/vigilohq/vigilo/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the integration registry and
// the detachment coordinator.
type Repository interface {
	GetIntegration(ref models.OwnerRef, channelKey string) (*models.Integration, error)
	ListIntegrations(ref models.OwnerRef) ([]models.Integration, error)
	UpsertIntegration(integration *models.Integration) error
	DeleteIntegration(id uint) error
	ListMonitorsWithAlerts(ref models.OwnerRef) ([]models.Monitor, error)
	SaveAlert(alert *models.Alert) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an integrations repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetIntegration(ref models.OwnerRef, channelKey string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.
		Where("owner_kind = ? AND owner_id = ? AND channel_key = ?", ref.Kind, ref.ID, channelKey).
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *gormRepository) ListIntegrations(ref models.OwnerRef) ([]models.Integration, error) {
	var integrations []models.Integration
	err := r.db.
		Where("owner_kind = ? AND owner_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC").
		Find(&integrations).Error
	return integrations, err
}

func (r *gormRepository) UpsertIntegration(integration *models.Integration) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_kind"},
			{Name: "owner_id"},
			{Name: "channel_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"channel_name",
			"workspace_name",
			"access_token_enc",
			"webhook_url",
			"token_expires_at",
			"updated_at",
		}),
	}).Create(integration).Error; err != nil {
		return err
	}

	return r.db.
		Where("owner_kind = ? AND owner_id = ? AND channel_key = ?", integration.OwnerKind, integration.OwnerID, integration.ChannelKey).
		First(integration).Error
}

func (r *gormRepository) DeleteIntegration(id uint) error {
	return r.db.Delete(&models.Integration{}, id).Error
}

func (r *gormRepository) ListMonitorsWithAlerts(ref models.OwnerRef) ([]models.Monitor, error) {
	var monitors []models.Monitor
	err := r.db.
		Where("owner_kind = ? AND owner_id = ?", ref.Kind, ref.ID).
		Preload("Alert").
		Find(&monitors).Error
	return monitors, err
}

func (r *gormRepository) SaveAlert(alert *models.Alert) error {
	return r.db.Save(alert).Error
}
