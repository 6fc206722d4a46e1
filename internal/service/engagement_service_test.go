package service_test

import (
	"testing"

	"github.com/flmlnk/flmlnk-backend/internal/model"
	"github.com/flmlnk/flmlnk-backend/internal/service"
)

type engagementFixture struct {
	campaigns  *memCampaignRepo
	recipients *memRecipientRepo
	ledger     *memLedgerRepo
	events     *memEventRepo
	svc        *service.EngagementService
	campaign   *model.Campaign
	recipient  *model.Recipient
}

func newEngagementFixture(t *testing.T) *engagementFixture {
	t.Helper()
	campaigns := newMemCampaignRepo()
	recipients := newMemRecipientRepo()
	ledger := newMemLedgerRepo()
	events := &memEventRepo{}

	profileID := 1
	campaign := campaigns.add(&model.Campaign{
		ProfileID: &profileID, Name: "Launch", Status: model.CampaignSent,
	})
	recipient := recipients.add(&model.Recipient{
		ProfileID: &profileID, Kind: model.RecipientFan,
		Email: "ada@example.com", UnsubscribeToken: "tok-ada",
	})
	if _, err := ledger.CreatePendingRows(campaign.ID, []int{recipient.ID}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	if err := ledger.UpdateStatus(campaign.ID, recipient.ID, model.DeliverySent, "msg-1", ""); err != nil {
		t.Fatalf("seed ledger status: %v", err)
	}

	return &engagementFixture{
		campaigns:  campaigns,
		recipients: recipients,
		ledger:     ledger,
		events:     events,
		svc: &service.EngagementService{
			CampaignRepo:  campaigns,
			RecipientRepo: recipients,
			LedgerRepo:    ledger,
			EventRepo:     events,
		},
		campaign:  campaign,
		recipient: recipient,
	}
}

func TestProcessDelivered(t *testing.T) {
	f := newEngagementFixture(t)

	if err := f.svc.ProcessEmailEvent(service.WebhookDelivered, "msg-1", "", ""); err != nil {
		t.Fatalf("delivered: %v", err)
	}

	row, _ := f.ledger.GetRow(f.campaign.ID, f.recipient.ID)
	if row.Status != model.DeliveryDelivered || row.DeliveredAt == nil {
		t.Errorf("ledger row not marked delivered: %+v", row)
	}
	c, _ := f.campaigns.GetByID(f.campaign.ID)
	if c.DeliveredCount != 1 {
		t.Errorf("expected delivered counter 1, got %d", c.DeliveredCount)
	}
}

func TestProcessBounceSuppressesRecipient(t *testing.T) {
	f := newEngagementFixture(t)

	if err := f.svc.ProcessEmailEvent(service.WebhookBounced, "msg-1", "mailbox full", ""); err != nil {
		t.Fatalf("bounced: %v", err)
	}

	row, _ := f.ledger.GetRow(f.campaign.ID, f.recipient.ID)
	if row.Status != model.DeliveryBounced || row.ErrorMessage != "mailbox full" {
		t.Errorf("ledger row not marked bounced: %+v", row)
	}
	rec, _ := f.recipients.GetByID(f.recipient.ID)
	if !rec.HardBounce {
		t.Error("bounce must set the hard-bounce suppression flag")
	}
	if rec.Sendable() {
		t.Error("bounced recipient must not be sendable")
	}
}

func TestProcessOpenCountsOnceForCampaign(t *testing.T) {
	f := newEngagementFixture(t)

	for i := 0; i < 3; i++ {
		if err := f.svc.ProcessEmailEvent(service.WebhookOpened, "msg-1", "", ""); err != nil {
			t.Fatalf("opened: %v", err)
		}
	}

	c, _ := f.campaigns.GetByID(f.campaign.ID)
	if c.OpenedCount != 1 {
		t.Errorf("expected unique-open counter 1, got %d", c.OpenedCount)
	}
	rec, _ := f.recipients.GetByID(f.recipient.ID)
	if rec.OpenCount != 3 {
		t.Errorf("expected raw open count 3, got %d", rec.OpenCount)
	}

	opens := 0
	for _, ev := range f.events.events {
		if ev.Kind == model.EventEmailOpen {
			opens++
		}
	}
	if opens != 3 {
		t.Errorf("expected 3 open events, got %d", opens)
	}
}

func TestProcessClickRecordsURL(t *testing.T) {
	f := newEngagementFixture(t)

	if err := f.svc.ProcessEmailEvent(service.WebhookClicked, "msg-1", "", "https://flml.ink/drop"); err != nil {
		t.Fatalf("clicked: %v", err)
	}

	c, _ := f.campaigns.GetByID(f.campaign.ID)
	if c.ClickedCount != 1 {
		t.Errorf("expected click counter 1, got %d", c.ClickedCount)
	}
	found := false
	for _, ev := range f.events.events {
		if ev.Kind == model.EventEmailClick && ev.URL == "https://flml.ink/drop" {
			found = true
		}
	}
	if !found {
		t.Errorf("click event with url not recorded: %+v", f.events.events)
	}
}

func TestProcessUnknownMessageIDIsIgnored(t *testing.T) {
	f := newEngagementFixture(t)

	if err := f.svc.ProcessEmailEvent(service.WebhookOpened, "msg-unknown", "", ""); err != nil {
		t.Fatalf("unknown message id must be a no-op, got %v", err)
	}
	c, _ := f.campaigns.GetByID(f.campaign.ID)
	if c.OpenedCount != 0 {
		t.Errorf("counter moved for unknown message id: %d", c.OpenedCount)
	}
}

func TestProcessUnknownEventType(t *testing.T) {
	f := newEngagementFixture(t)

	if err := f.svc.ProcessEmailEvent("email.snoozed", "msg-1", "", ""); err == nil {
		t.Error("expected error for unknown event type")
	}
}
