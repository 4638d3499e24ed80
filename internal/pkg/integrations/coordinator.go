package integrations

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/vigilohq/vigilo/app/models"
	"gorm.io/gorm"
)

// DetachOutcome is the typed result of a detach-and-delete call.
type DetachOutcome int

const (
	// DetachOK: every referencing alert was rewritten and the integration
	// record was deleted.
	DetachOK DetachOutcome = iota
	// DetachNotFound: no integration exists for the given identity; nothing
	// was mutated.
	DetachNotFound
	// DetachConflict: at least one alert rewrite failed, so the integration
	// record was intentionally left installed. Retrying the whole call is
	// the prescribed recovery; already-rewritten alerts are re-detected as
	// satisfied.
	DetachConflict
)

// Coordinator removes an integration for an owner while guaranteeing no
// alert keeps referencing the removed channel. The store has no multi-record
// transactions, so the only safe ordering is detach everything first, then
// delete the record being detached from; a failure partway through leaves
// the integration installed and converges under retry.
type Coordinator struct {
	repo Repository
}

// NewCoordinator creates a detachment coordinator from an injected repository.
func NewCoordinator(repo Repository) *Coordinator {
	return &Coordinator{repo: repo}
}

// NewCoordinatorFromDB creates a detachment coordinator from a GORM DB handle.
func NewCoordinatorFromDB(db *gorm.DB) *Coordinator {
	return NewCoordinator(NewRepository(db))
}

// DetachAndDelete rewrites every alert of the owner that still references
// the channel identity, then deletes the integration record. The rewrite
// phase runs one write per affected alert concurrently and waits for all of
// them to settle before deciding pass/fail.
func (c *Coordinator) DetachAndDelete(ctx context.Context, ref models.OwnerRef, rawChannelKey string) (DetachOutcome, error) {
	key, err := ParseChannelKey(rawChannelKey)
	if err != nil {
		return DetachConflict, err
	}

	integration, err := c.repo.GetIntegration(ref, key.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DetachNotFound, nil
		}
		return DetachConflict, err
	}

	candidates, err := c.findReferencingAlerts(ref, integration.Type, key)
	if err != nil {
		return DetachConflict, err
	}

	if len(candidates) > 0 {
		if err := c.rewriteAlerts(ctx, candidates, integration.Type); err != nil {
			return DetachConflict, err
		}
	}

	if err := c.repo.DeleteIntegration(integration.ID); err != nil {
		return DetachConflict, err
	}
	return DetachOK, nil
}

// findReferencingAlerts scans the owner's monitors and collects each alert
// that still lists the channel identity among its recipients. Alerts shared
// by several monitors are collected once.
func (c *Coordinator) findReferencingAlerts(ref models.OwnerRef, channelType string, key ChannelKey) ([]*models.Alert, error) {
	monitors, err := c.repo.ListMonitorsWithAlerts(ref)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Alert
	seen := make(map[uint]struct{})
	for _, monitor := range monitors {
		for _, alert := range monitor.Alerts() {
			if _, ok := seen[alert.ID]; ok {
				continue
			}
			references, err := alertReferencesChannel(alert, channelType, key)
			if err != nil {
				return nil, fmt.Errorf("alert %d: %w", alert.ID, err)
			}
			if references {
				seen[alert.ID] = struct{}{}
				candidates = append(candidates, alert)
			}
		}
	}
	return candidates, nil
}

// alertReferencesChannel checks whether the alert has the channel type
// enabled with a recipient matching the key. A stored recipient that fails
// to parse is corrupt data and aborts processing rather than being skipped.
func alertReferencesChannel(alert *models.Alert, channelType string, key ChannelKey) (bool, error) {
	enabled, err := alert.HasChannel(channelType)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	recipients, err := alert.RecipientsFor(channelType)
	if err != nil {
		return false, err
	}
	for _, recipient := range recipients {
		stored, err := ParseChannelKey(recipient)
		if err != nil {
			return false, err
		}
		if stored == key {
			return true, nil
		}
	}
	return false, nil
}

// rewriteAlerts persists a derived snapshot without the channel for each
// candidate. Writes are issued concurrently (disjoint records) and all of
// them settle before the pass/fail decision, so one slow write does not
// abort writes that would have succeeded.
func (c *Coordinator) rewriteAlerts(ctx context.Context, candidates []*models.Alert, channelType string) error {
	var wg sync.WaitGroup
	errs := make([]error, len(candidates))

	for i, alert := range candidates {
		wg.Add(1)
		go func(i int, alert *models.Alert) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			updated, err := alert.WithoutChannel(channelType)
			if err != nil {
				errs[i] = fmt.Errorf("alert %d: %w", alert.ID, err)
				return
			}
			if err := c.repo.SaveAlert(updated); err != nil {
				errs[i] = fmt.Errorf("alert %d: %w", alert.ID, err)
			}
		}(i, alert)
	}
	wg.Wait()

	failed := 0
	var first error
	for _, err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
			log.Errorf("integrations: alert rewrite failed: %v", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d alert rewrites failed: %w", failed, len(candidates), first)
	}
	return nil
}
