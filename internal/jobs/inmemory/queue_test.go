package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/rent-ledger/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ImportPaymentsJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, want, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store, WithWorkers(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		importJob := job.(*jobs.ImportPaymentsJob)
		importJob.Result = &jobs.ImportSummary{Successful: 3}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer q.Close()

	job := &jobs.ImportPaymentsJob{GCSURI: "gs://bucket/payments.csv"}
	if err := q.PublishImportPayments(ctx, job); err != nil {
		t.Fatalf("PublishImportPayments() error: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.Successful != 3 {
		t.Errorf("Result = %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("expected timestamps to be set")
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store, WithRetryDelay(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return errors.New("bucket unavailable")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	job := &jobs.ImportPaymentsJob{JobID: "job-1", GCSURI: "gs://bucket/a.csv"}
	if err := q.PublishImportPayments(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, "job-1", jobs.JobStatusCompleted)
	if done.RetryCount != 2 || done.Error != "" {
		t.Errorf("RetryCount = %d Error = %q", done.RetryCount, done.Error)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store, WithRetryDelay(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("malformed file")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	job := &jobs.ImportPaymentsJob{JobID: "job-2", MaxRetries: 1}
	if err := q.PublishImportPayments(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, "job-2", jobs.JobStatusFailed)
	if done.RetryCount != 1 || done.Error != "malformed file" {
		t.Errorf("RetryCount = %d Error = %q", done.RetryCount, done.Error)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := q.PublishImportPayments(context.Background(), &jobs.ImportPaymentsJob{}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
}
