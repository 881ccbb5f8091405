package followup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/contacts"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/messaging"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// selectiveSender fails sends to the phones in Fail and records the rest.
// OnSend, when set, observes every attempt.
type selectiveSender struct {
	Fail   map[string]error
	Sent   []sentRecord
	OnSend func(to string)
}

type sentRecord struct {
	To   string
	Text string
}

func (s *selectiveSender) SendMessage(ctx context.Context, to, text string, mediaURLs []string) error {
	if s.OnSend != nil {
		s.OnSend(to)
	}
	if err, ok := s.Fail[to]; ok {
		return err
	}
	s.Sent = append(s.Sent, sentRecord{To: to, Text: text})
	return nil
}

func seedRepo(t *testing.T, list []models.Contact) contacts.Repository {
	t.Helper()
	repo := contacts.NewInMemoryRepository()
	if err := repo.SaveAll(context.Background(), list); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return repo
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRun_SendsDueContactsInScriptOrder(t *testing.T) {
	now := time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC)
	dayAgo := now.Add(-25 * time.Hour)
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: 0},
		{Phone: "+15551230002", FollowUpCount: 2, LastFollowUpDate: &dayAgo},
	})
	sender := &selectiveSender{}
	runner := NewRunner(messaging.NewService(sender), repo, WithClock(fixedClock(now)))

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Sent != 2 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(sender.Sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.Sent))
	}
	if sender.Sent[0].Text != Script[0] {
		t.Errorf("first contact should get step 0, got %q", sender.Sent[0].Text)
	}
	if sender.Sent[1].Text != Script[2] {
		t.Errorf("second contact should get step 2, got %q", sender.Sent[1].Text)
	}

	// Counters and timestamps advance only for sent contacts.
	c, err := repo.Get(context.Background(), "+15551230001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c.FollowUpCount != 1 || c.LastFollowUpDate == nil || !c.LastFollowUpDate.Equal(now) {
		t.Errorf("contact not advanced: %+v", c)
	}
}

func TestRun_ThrottlesWithinOneDay(t *testing.T) {
	now := time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: 1, LastFollowUpDate: &recent},
	})
	sender := &selectiveSender{}
	runner := NewRunner(messaging.NewService(sender), repo, WithClock(fixedClock(now)))

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped != 1 || summary.Sent != 0 {
		t.Fatalf("expected throttled skip: %+v", summary)
	}
	if len(sender.Sent) != 0 {
		t.Errorf("no message should go out inside the interval")
	}

	c, _ := repo.Get(context.Background(), "+15551230001")
	if c.FollowUpCount != 1 || !c.LastFollowUpDate.Equal(recent) {
		t.Errorf("skipped contact must not be mutated: %+v", c)
	}
}

func TestRun_SkipsExhaustedContacts(t *testing.T) {
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: models.MaxFollowUps},
	})
	sender := &selectiveSender{}
	runner := NewRunner(messaging.NewService(sender), repo)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped != 1 || len(sender.Sent) != 0 {
		t.Fatalf("exhausted contact should be skipped: %+v", summary)
	}
}

func TestRun_FailedSendLeavesContactDue(t *testing.T) {
	now := time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC)
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: 0},
		{Phone: "+15551230002", FollowUpCount: 0},
	})
	sender := &selectiveSender{Fail: map[string]error{"+15551230001": errors.New("carrier rejected")}}
	runner := NewRunner(messaging.NewService(sender), repo, WithClock(fixedClock(now)))

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Sent != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// The failed contact stays at step 0 and is retried next run.
	failed, _ := repo.Get(context.Background(), "+15551230001")
	if failed.FollowUpCount != 0 || failed.LastFollowUpDate != nil {
		t.Errorf("failed contact must not advance: %+v", failed)
	}
	ok, _ := repo.Get(context.Background(), "+15551230002")
	if ok.FollowUpCount != 1 {
		t.Errorf("successful contact should advance: %+v", ok)
	}
}

func TestRun_NilLastDateIsAlwaysDue(t *testing.T) {
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: 3},
	})
	sender := &selectiveSender{}
	runner := NewRunner(messaging.NewService(sender), repo)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("contact with no recorded send should be due: %+v", summary)
	}
	if sender.Sent[0].Text != Script[3] {
		t.Errorf("expected step 3 message, got %q", sender.Sent[0].Text)
	}
}

func TestRun_UnsubscribeDuringRunIsNotResurrected(t *testing.T) {
	now := time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC)
	repo := seedRepo(t, []models.Contact{
		{Phone: "+15551230001", FollowUpCount: 0},
		{Phone: "+15551230002", FollowUpCount: 0},
	})

	// An unsubscribe arriving mid-pass contends on the run-level lock, so
	// the delete lands after the batch save instead of being overwritten
	// by it.
	unsubscribed := make(chan struct{})
	var once sync.Once
	sender := &selectiveSender{OnSend: func(string) {
		once.Do(func() {
			go func() {
				release := repo.Acquire()
				defer release()
				if err := repo.Delete(context.Background(), "+15551230002"); err != nil {
					t.Errorf("Delete failed: %v", err)
				}
				close(unsubscribed)
			}()
		})
	}}
	runner := NewRunner(messaging.NewService(sender), repo, WithClock(fixedClock(now)))

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	<-unsubscribed

	if _, err := repo.Get(context.Background(), "+15551230002"); !errors.Is(err, models.ErrContactNotFound) {
		t.Errorf("unsubscribed contact should stay deleted after the run, got %v", err)
	}
	kept, err := repo.Get(context.Background(), "+15551230001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if kept.FollowUpCount != 1 {
		t.Errorf("remaining contact should keep its advanced count: %+v", kept)
	}
}

func TestScriptLengthMatchesLimit(t *testing.T) {
	if len(Script) != models.MaxFollowUps {
		t.Fatalf("script has %d messages, limit is %d", len(Script), models.MaxFollowUps)
	}
}
