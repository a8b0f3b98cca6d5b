package model

import "fmt"

// SessionPhase is the lifecycle position of a single capture session.
type SessionPhase string

const (
	PhaseAwaitingPermission SessionPhase = "awaiting_permission"
	PhasePermissionDenied   SessionPhase = "permission_denied"
	PhaseReadyToCapture     SessionPhase = "ready_to_capture"
	PhaseCapturing          SessionPhase = "capturing"
	PhaseUploading          SessionPhase = "uploading"
	PhaseUploadSucceeded    SessionPhase = "upload_succeeded"
	PhaseUploadFailed       SessionPhase = "upload_failed"
)

var allowedPhaseTransitions = map[SessionPhase]map[SessionPhase]bool{
	"": {
		PhaseAwaitingPermission: true,
	},
	PhaseAwaitingPermission: {
		PhaseReadyToCapture:   true,
		PhasePermissionDenied: true,
	},
	PhasePermissionDenied: {
		PhasePermissionDenied: true,
		PhaseReadyToCapture:   true, // re-granted
	},
	PhaseReadyToCapture: {
		PhaseCapturing: true,
	},
	PhaseCapturing: {
		PhaseReadyToCapture:   true,
		PhaseUploading:        true,
		PhaseUploadFailed:     true, // re-capture started from a failed upload
		PhasePermissionDenied: true, // permission revoked mid-session
	},
	PhaseUploading: {
		PhaseUploadSucceeded: true,
		PhaseUploadFailed:    true,
	},
	PhaseUploadFailed: {
		PhaseUploading: true,
		PhaseCapturing: true,
	},
	PhaseUploadSucceeded: {},
}

func IsKnownPhase(phase SessionPhase) bool {
	_, ok := allowedPhaseTransitions[phase]
	return ok && phase != ""
}

func CanTransitionPhase(from, to SessionPhase) bool {
	next, ok := allowedPhaseTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminalPhase reports whether no further transition is possible.
func IsTerminalPhase(phase SessionPhase) bool {
	next, ok := allowedPhaseTransitions[phase]
	return ok && len(next) == 0
}

func CheckPhaseTransition(from, to SessionPhase) error {
	if !CanTransitionPhase(from, to) {
		return fmt.Errorf("invalid session phase transition: %q -> %q", from, to)
	}
	return nil
}
