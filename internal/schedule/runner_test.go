package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"study-sms-server/internal/models"
)

func runnerFixtures() (*mockParticipantRepository, *mockContentRepository, *mockMessageRepository, *mockSender) {
	participants := &mockParticipantRepository{
		listSchedulableFunc: func() ([]*models.Participant, error) {
			return []*models.Participant{
				scheduledParticipant("2024-01-01", "00:00", "23:59", 0),
			}, nil
		},
	}
	contents := &mockContentRepository{
		listActiveByBucketFunc: func(bucket string) ([]*models.MessageContent, error) {
			return []*models.MessageContent{template(1, bucket, "hello %F")}, nil
		},
	}
	messages := &mockMessageRepository{}
	sender := &mockSender{
		sendFunc: func(ctx context.Context, p *models.Participant, content, bucket string, contentID *int64) (*models.Message, error) {
			return &models.Message{ID: 1, ParticipantID: p.ID, Status: models.StatusSent}, nil
		},
	}
	return participants, contents, messages, sender
}

func testRunner(participants *mockParticipantRepository, contents *mockContentRepository, messages *mockMessageRepository, sender *mockSender) *Runner {
	selector := NewSelector(contents, messages, fixedRand())
	return NewRunner(participants, selector, sender).
		WithClock(func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) })
}

func TestRunnerRunOnce(t *testing.T) {
	participants, contents, messages, sender := runnerFixtures()
	runner := testRunner(participants, contents, messages, sender)

	sent, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(sender.calls) != 1 || sender.calls[0] != "VET001" {
		t.Errorf("unexpected sender calls: %v", sender.calls)
	}
}

func TestRunnerRunOnceSkipsIneligible(t *testing.T) {
	participants, contents, messages, sender := runnerFixtures()

	outside := scheduledParticipant("2024-01-01", "01:00", "02:00", 0)
	outside.PID = "VET002"
	notStarted := scheduledParticipant("2099-01-01", "00:00", "23:59", 0)
	notStarted.PID = "VET003"
	participants.listSchedulableFunc = func() ([]*models.Participant, error) {
		return []*models.Participant{
			scheduledParticipant("2024-01-01", "00:00", "23:59", 0),
			outside,
			notStarted,
		}, nil
	}

	runner := testRunner(participants, contents, messages, sender)
	sent, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(sender.calls) != 1 || sender.calls[0] != "VET001" {
		t.Errorf("only the in-window participant should be dispatched, got %v", sender.calls)
	}
}

func TestRunnerRunOnceIsolatesFailures(t *testing.T) {
	// Three eligible participants; the middle one's dispatch errors. The
	// other two must still go out.
	participants, contents, messages, sender := runnerFixtures()

	var batch []*models.Participant
	for i, pid := range []string{"VET001", "VET002", "VET003"} {
		p := scheduledParticipant("2024-01-01", "00:00", "23:59", 0)
		p.ID = int64(i + 1)
		p.PID = pid
		batch = append(batch, p)
	}
	participants.listSchedulableFunc = func() ([]*models.Participant, error) {
		return batch, nil
	}
	sender.sendFunc = func(ctx context.Context, p *models.Participant, content, bucket string, contentID *int64) (*models.Message, error) {
		if p.PID == "VET002" {
			return nil, fmt.Errorf("provider unreachable")
		}
		return &models.Message{ParticipantID: p.ID, Status: models.StatusSent}, nil
	}

	runner := testRunner(participants, contents, messages, sender)
	sent, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if len(sender.calls) != 3 {
		t.Errorf("all eligible participants should be attempted, got calls %v", sender.calls)
	}
}

func TestRunnerRunOnceCountsOnlyAcceptedDispatches(t *testing.T) {
	// A dispatch recorded as failed still returns a Message, but must not
	// count toward the batch total
	participants, contents, messages, sender := runnerFixtures()
	sender.sendFunc = func(ctx context.Context, p *models.Participant, content, bucket string, contentID *int64) (*models.Message, error) {
		return &models.Message{ParticipantID: p.ID, Status: models.StatusFailed}, nil
	}

	runner := testRunner(participants, contents, messages, sender)
	sent, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 for a failed dispatch", sent)
	}
}

func TestRunnerRunOnceSkipsParticipantWithoutTemplates(t *testing.T) {
	participants, contents, messages, sender := runnerFixtures()
	contents.listActiveByBucketFunc = func(bucket string) ([]*models.MessageContent, error) {
		return nil, nil
	}

	runner := testRunner(participants, contents, messages, sender)
	sent, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	if len(sender.calls) != 0 {
		t.Errorf("nothing should be dispatched without templates, got %v", sender.calls)
	}
}

func TestRunnerRunOnceListFailure(t *testing.T) {
	participants, contents, messages, sender := runnerFixtures()
	boom := errors.New("db down")
	participants.listSchedulableFunc = func() ([]*models.Participant, error) {
		return nil, boom
	}

	runner := testRunner(participants, contents, messages, sender)
	if _, err := runner.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped list error, got %v", err)
	}
}

func TestRunnerRunOnceStopsOnCancelledContext(t *testing.T) {
	participants, contents, messages, sender := runnerFixtures()
	participants.listSchedulableFunc = func() ([]*models.Participant, error) {
		var batch []*models.Participant
		for i := 0; i < 5; i++ {
			p := scheduledParticipant("2024-01-01", "00:00", "23:59", 0)
			p.ID = int64(i + 1)
			p.PID = fmt.Sprintf("VET%03d", i+1)
			batch = append(batch, p)
		}
		return batch, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := testRunner(participants, contents, messages, sender)
	sent, err := runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if sent != 0 || len(sender.calls) != 0 {
		t.Errorf("cancelled context must stop the batch, sent=%d calls=%v", sent, sender.calls)
	}
}
