package pending

import (
	"path/filepath"
	"testing"
	"time"

	"otsgo/internal/attestation"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

func sampleSteps(uri string) proof.Steps {
	return proof.Steps{proof.NewAttestationStep(attestation.Pending{URI: uri})}
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "nested", "sub", "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestPutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	rec := Record{
		Digest:      [32]byte{1, 2, 3},
		Algo:        ops.Sha256,
		Steps:       sampleSteps("https://cal.example"),
		SubmittedAt: time.Now().UnixNano(),
	}
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(rec.Digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Digest != rec.Digest {
		t.Errorf("digest mismatch")
	}
	if got.Algo != ops.Sha256 {
		t.Errorf("algo mismatch: got %v", got.Algo)
	}
	if string(got.Steps.Bytes()) != string(rec.Steps.Bytes()) {
		t.Errorf("steps mismatch")
	}
	if got.Attempts != 0 {
		t.Errorf("expected zero attempts, got %d", got.Attempts)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get([32]byte{9, 9, 9})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing digest")
	}
}

func TestTouchIncrementsAttemptsAndUpdatesSteps(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	digest := [32]byte{4, 5, 6}
	if err := s.Put(Record{Digest: digest, Algo: ops.Sha256, Steps: sampleSteps("https://a"), SubmittedAt: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	newSteps := sampleSteps("https://b")
	if err := s.Touch(digest, 100, newSteps); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
	if got.LastCheckedAt == nil || *got.LastCheckedAt != 100 {
		t.Errorf("expected last_checked_at=100, got %v", got.LastCheckedAt)
	}
	if string(got.Steps.Bytes()) != string(newSteps.Bytes()) {
		t.Errorf("steps were not updated")
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	digest := [32]byte{7, 8, 9}
	if err := s.Put(Record{Digest: digest, Algo: ops.Sha256, Steps: sampleSteps("https://a"), SubmittedAt: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(digest); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected record to be deleted")
	}
}

func TestListAllOrdersBySubmittedAt(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "pending.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	d1 := [32]byte{1}
	d2 := [32]byte{2}
	if err := s.Put(Record{Digest: d2, Algo: ops.Sha256, Steps: sampleSteps("https://a"), SubmittedAt: 200}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(Record{Digest: d1, Algo: ops.Sha256, Steps: sampleSteps("https://a"), SubmittedAt: 100}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].Digest != d1 || all[1].Digest != d2 {
		t.Errorf("records not ordered by submitted_at")
	}
}
