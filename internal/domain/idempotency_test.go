package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecord_FinishedAndExpired(t *testing.T) {
	now := time.Now().UTC()

	processing := IdempotencyRecord{Status: IdempotencyStatusProcessing, TTLAt: now.Add(time.Minute)}
	if processing.Finished() {
		t.Fatal("processing record must not be finished")
	}
	if processing.Expired(now) {
		t.Fatal("record with future ttl must not be expired")
	}

	done := IdempotencyRecord{Status: IdempotencyStatusDone, TTLAt: now.Add(-time.Second)}
	if !done.Finished() {
		t.Fatal("done record must be finished")
	}
	if !done.Expired(now) {
		t.Fatal("record with past ttl must be expired")
	}

	if (IdempotencyRecord{}).Expired(now) {
		t.Fatal("record without ttl never expires")
	}
}
