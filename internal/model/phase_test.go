package model

import "testing"

func TestCanTransitionPhase_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from SessionPhase
		to   SessionPhase
	}{
		{"", PhaseAwaitingPermission},
		{PhaseAwaitingPermission, PhaseReadyToCapture},
		{PhaseAwaitingPermission, PhasePermissionDenied},
		{PhasePermissionDenied, PhaseReadyToCapture},
		{PhaseReadyToCapture, PhaseCapturing},
		{PhaseCapturing, PhaseReadyToCapture},
		{PhaseCapturing, PhaseUploading},
		{PhaseUploading, PhaseUploadSucceeded},
		{PhaseUploading, PhaseUploadFailed},
		{PhaseUploadFailed, PhaseUploading},
	}

	for _, tc := range cases {
		if !CanTransitionPhase(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionPhase_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from SessionPhase
		to   SessionPhase
	}{
		{"", PhaseReadyToCapture},
		{PhaseAwaitingPermission, PhaseCapturing},
		{PhasePermissionDenied, PhaseCapturing},
		{PhaseReadyToCapture, PhaseUploading},
		{PhaseUploading, PhaseUploading},
		{PhaseUploading, PhaseCapturing},
		{PhaseUploadSucceeded, PhaseUploading},
		{"not_a_phase", PhaseReadyToCapture},
	}

	for _, tc := range cases {
		if CanTransitionPhase(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestUploadSucceededIsTerminal(t *testing.T) {
	if !IsTerminalPhase(PhaseUploadSucceeded) {
		t.Fatal("expected upload_succeeded to be terminal")
	}
	if IsTerminalPhase(PhasePermissionDenied) {
		t.Fatal("permission_denied must allow re-grant")
	}
	if err := CheckPhaseTransition(PhaseUploadSucceeded, PhaseUploading); err == nil {
		t.Fatal("expected error leaving terminal phase")
	}
}
