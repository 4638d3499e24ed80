package integrations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vigilohq/vigilo/app/models"
	"gorm.io/gorm"
)

type fakeRepository struct {
	mu sync.Mutex

	integrations map[string]*models.Integration
	monitors     []models.Monitor

	monitorQueries int
	savedAlerts    []*models.Alert
	deletedIDs     []uint
	failAlertIDs   map[uint]error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		integrations: map[string]*models.Integration{},
		failAlertIDs: map[uint]error{},
	}
}

func (r *fakeRepository) GetIntegration(ref models.OwnerRef, channelKey string) (*models.Integration, error) {
	integration, ok := r.integrations[channelKey]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return integration, nil
}

func (r *fakeRepository) ListIntegrations(ref models.OwnerRef) ([]models.Integration, error) {
	return nil, nil
}

func (r *fakeRepository) UpsertIntegration(integration *models.Integration) error {
	r.integrations[integration.ChannelKey] = integration
	return nil
}

func (r *fakeRepository) DeleteIntegration(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedIDs = append(r.deletedIDs, id)
	for key, integration := range r.integrations {
		if integration.ID == id {
			delete(r.integrations, key)
		}
	}
	return nil
}

func (r *fakeRepository) ListMonitorsWithAlerts(ref models.OwnerRef) ([]models.Monitor, error) {
	r.monitorQueries++
	return r.monitors, nil
}

func (r *fakeRepository) SaveAlert(alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failAlertIDs[alert.ID]; ok {
		return err
	}
	r.savedAlerts = append(r.savedAlerts, alert)
	return nil
}

func mustAlert(t *testing.T, id uint, channels []string, recipients map[string][]string) *models.Alert {
	t.Helper()
	alert := &models.Alert{ID: id, OwnerKind: models.OwnerKindUser, OwnerID: 1, Name: "alert"}
	if err := alert.SetChannels(channels); err != nil {
		t.Fatalf("SetChannels: %v", err)
	}
	if err := alert.SetRecipients(recipients); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	return alert
}

func slackIntegration(id uint, channelKey string) *models.Integration {
	return &models.Integration{
		ID:         id,
		OwnerKind:  models.OwnerKindUser,
		OwnerID:    1,
		Type:       models.IntegrationTypeSlack,
		ChannelKey: channelKey,
	}
}

func ownerRef() models.OwnerRef {
	return models.OwnerRef{Kind: models.OwnerKindUser, ID: 1}
}

// Scenario from the product requirements: M1 and M2 share alert A1 which
// references the Slack channel, M3's alert A2 does not. Detaching must
// rewrite A1 exactly once, leave A2 untouched, then delete the integration.
func TestDetachAndDelete_RewritesReferencingAlerts(t *testing.T) {
	repo := newFakeRepository()
	repo.integrations["T1#C1"] = slackIntegration(10, "T1#C1")

	a1 := mustAlert(t, 1, []string{"slack"}, map[string][]string{"slack": {"T1#C1"}})
	a2 := mustAlert(t, 2, []string{"email"}, map[string][]string{"email": {"ops@example.com"}})
	a1ID, a2ID := a1.ID, a2.ID
	repo.monitors = []models.Monitor{
		{ID: 1, AlertID: &a1ID, Alert: a1},
		{ID: 2, AlertID: &a1ID, Alert: a1},
		{ID: 3, AlertID: &a2ID, Alert: a2},
	}

	outcome, err := NewCoordinator(repo).DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != DetachOK {
		t.Fatalf("expected DetachOK, got %v", outcome)
	}

	if len(repo.savedAlerts) != 1 {
		t.Fatalf("expected exactly one alert rewrite, got %d", len(repo.savedAlerts))
	}
	rewritten := repo.savedAlerts[0]
	if rewritten.ID != 1 {
		t.Fatalf("expected alert 1 to be rewritten, got %d", rewritten.ID)
	}
	channels, err := rewritten.ChannelList()
	if err != nil {
		t.Fatalf("ChannelList: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("expected channels cleared, got %v", channels)
	}
	recipients, err := rewritten.RecipientsFor("slack")
	if err != nil {
		t.Fatalf("RecipientsFor: %v", err)
	}
	if len(recipients) != 0 {
		t.Fatalf("expected slack recipients cleared, got %v", recipients)
	}

	if len(repo.deletedIDs) != 1 || repo.deletedIDs[0] != 10 {
		t.Fatalf("expected integration 10 deleted, got %v", repo.deletedIDs)
	}
}

func TestDetachAndDelete_NotFoundShortCircuits(t *testing.T) {
	repo := newFakeRepository()

	outcome, err := NewCoordinator(repo).DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != DetachNotFound {
		t.Fatalf("expected DetachNotFound, got %v", outcome)
	}
	if repo.monitorQueries != 0 {
		t.Fatalf("expected no monitor scan, got %d queries", repo.monitorQueries)
	}
}

func TestDetachAndDelete_ZeroCandidatesFastPath(t *testing.T) {
	repo := newFakeRepository()
	repo.integrations["T1#C1"] = slackIntegration(10, "T1#C1")

	a := mustAlert(t, 1, []string{"slack"}, map[string][]string{"slack": {"T9#C9"}})
	aID := a.ID
	repo.monitors = []models.Monitor{{ID: 1, AlertID: &aID, Alert: a}}

	outcome, err := NewCoordinator(repo).DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != DetachOK {
		t.Fatalf("expected DetachOK, got %v", outcome)
	}
	if len(repo.savedAlerts) != 0 {
		t.Fatalf("expected no alert writes, got %d", len(repo.savedAlerts))
	}
	if len(repo.deletedIDs) != 1 {
		t.Fatalf("expected integration deleted, got %v", repo.deletedIDs)
	}
}

func TestDetachAndDelete_FailedRewriteBlocksDeletion(t *testing.T) {
	repo := newFakeRepository()
	repo.integrations["T1#C1"] = slackIntegration(10, "T1#C1")

	a1 := mustAlert(t, 1, []string{"slack"}, map[string][]string{"slack": {"T1#C1"}})
	a2 := mustAlert(t, 2, []string{"slack"}, map[string][]string{"slack": {"T1#C1"}})
	a1ID, a2ID := a1.ID, a2.ID
	repo.monitors = []models.Monitor{
		{ID: 1, AlertID: &a1ID, Alert: a1},
		{ID: 2, AlertID: &a2ID, Alert: a2},
	}
	repo.failAlertIDs[2] = errors.New("write timeout")

	outcome, err := NewCoordinator(repo).DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if err == nil {
		t.Fatalf("expected rewrite failure to surface")
	}
	if outcome != DetachConflict {
		t.Fatalf("expected DetachConflict, got %v", outcome)
	}
	if len(repo.deletedIDs) != 0 {
		t.Fatalf("expected integration to stay installed, got deletions %v", repo.deletedIDs)
	}
}

func TestDetachAndDelete_RetryConverges(t *testing.T) {
	repo := newFakeRepository()
	repo.integrations["T1#C1"] = slackIntegration(10, "T1#C1")

	a1 := mustAlert(t, 1, []string{"slack"}, map[string][]string{"slack": {"T1#C1"}})
	a2 := mustAlert(t, 2, []string{"slack"}, map[string][]string{"slack": {"T1#C1"}})
	a1ID, a2ID := a1.ID, a2.ID
	repo.monitors = []models.Monitor{
		{ID: 1, AlertID: &a1ID, Alert: a1},
		{ID: 2, AlertID: &a2ID, Alert: a2},
	}
	repo.failAlertIDs[2] = errors.New("write timeout")

	coordinator := NewCoordinator(repo)
	if outcome, err := coordinator.DetachAndDelete(context.Background(), ownerRef(), "T1#C1"); err == nil || outcome != DetachConflict {
		t.Fatalf("expected first attempt to conflict, got %v err=%v", outcome, err)
	}

	// The successful rewrite of alert 1 stuck; simulate the partial state
	// the scan would see on retry and let alert 2 writes succeed now.
	rewritten, err := a1.WithoutChannel("slack")
	if err != nil {
		t.Fatalf("WithoutChannel: %v", err)
	}
	repo.monitors[0].Alert = rewritten
	delete(repo.failAlertIDs, 2)
	repo.savedAlerts = nil

	outcome, err := coordinator.DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if outcome != DetachOK {
		t.Fatalf("expected retry to succeed, got %v", outcome)
	}
	if len(repo.savedAlerts) != 1 || repo.savedAlerts[0].ID != 2 {
		t.Fatalf("expected only the remaining alert to be rewritten, got %+v", repo.savedAlerts)
	}
	if len(repo.deletedIDs) != 1 {
		t.Fatalf("expected integration deleted on retry, got %v", repo.deletedIDs)
	}
}

func TestDetachAndDelete_CorruptStoredRecipient(t *testing.T) {
	repo := newFakeRepository()
	repo.integrations["T1#C1"] = slackIntegration(10, "T1#C1")

	a := mustAlert(t, 1, []string{"slack"}, map[string][]string{"slack": {"missing-separator"}})
	aID := a.ID
	repo.monitors = []models.Monitor{{ID: 1, AlertID: &aID, Alert: a}}

	outcome, err := NewCoordinator(repo).DetachAndDelete(context.Background(), ownerRef(), "T1#C1")
	if !errors.Is(err, ErrMalformedChannelKey) {
		t.Fatalf("expected ErrMalformedChannelKey, got %v", err)
	}
	if outcome == DetachOK {
		t.Fatalf("corrupt data must not produce a success outcome")
	}
	if len(repo.deletedIDs) != 0 {
		t.Fatalf("expected no deletion on corrupt data, got %v", repo.deletedIDs)
	}
}
