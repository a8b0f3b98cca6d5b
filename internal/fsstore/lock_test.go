package fsstore

import "testing"

func TestAcquireLock_BlocksConcurrentAcquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, ".632.capture.lock")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireLock(dir, ".632.capture.lock"); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	other, err := AcquireLock(dir, ".700.capture.lock")
	if err != nil {
		t.Fatalf("lock for a different name should not contend: %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("release other lock: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireLock(dir, ".632.capture.lock")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireLock_RejectsPathNames(t *testing.T) {
	if _, err := AcquireLock(t.TempDir(), "../escape"); err == nil {
		t.Fatal("expected invalid lock name error")
	}
}
