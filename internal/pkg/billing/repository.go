package billing

import (
	"fmt"
	"time"

	"github.com/vigilohq/vigilo/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetCustomerByProviderID(provider, providerCustomerID string) (*models.BillingCustomer, error)
	UpsertCustomer(customer *models.BillingCustomer) error
	FindActivePlanMapping(provider, providerPriceRef string) (*models.BillingPlanMapping, error)
	SaveOwnerEntitlement(ref models.OwnerRef, e models.Entitlement) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCustomerByProviderID(provider, providerCustomerID string) (*models.BillingCustomer, error) {
	var customer models.BillingCustomer
	err := r.db.Where("provider = ? AND provider_customer_id = ?", provider, providerCustomerID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) UpsertCustomer(customer *models.BillingCustomer) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_kind",
			"owner_id",
			"email",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}

	return r.db.Where("provider = ? AND provider_customer_id = ?", customer.Provider, customer.ProviderCustomerID).
		First(customer).Error
}

func (r *gormRepository) FindActivePlanMapping(provider, providerPriceRef string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.
		Where("provider = ? AND provider_price_ref = ? AND is_active = ?", provider, providerPriceRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveOwnerEntitlement writes the full entitlement column set for the owner
// in one update. All transitions overwrite every field, never a delta.
func (r *gormRepository) SaveOwnerEntitlement(ref models.OwnerRef, e models.Entitlement) error {
	updates := map[string]interface{}{
		"product_id":          e.ProductID,
		"subscription_id":     e.SubscriptionID,
		"subscription_status": e.SubscriptionStatus,
		"period_end":          e.PeriodEnd,
	}

	var tx *gorm.DB
	switch ref.Kind {
	case models.OwnerKindUser:
		tx = r.db.Model(&models.User{}).Where("id = ?", ref.ID).Updates(updates)
	case models.OwnerKindTeam:
		tx = r.db.Model(&models.Team{}).Where("id = ?", ref.ID).Updates(updates)
	default:
		return fmt.Errorf("unknown owner kind: %s", ref.Kind)
	}
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
