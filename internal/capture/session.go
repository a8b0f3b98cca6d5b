package capture

import (
	"fieldops/internal/model"
	"fieldops/internal/upload"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the message the presentation layer shows after an operation.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Kind    Kind        `json:"kind,omitempty"`
	Message string      `json:"message"`
}

// Session is a point-in-time copy of the capture session state. Only the
// Controller mutates the live session.
type Session struct {
	ID           string              `json:"id"`
	LoadNumber   string              `json:"load_number"`
	CurrentIndex int                 `json:"current_index"`
	Total        int                 `json:"total"`
	StagedPhotos []model.StagedPhoto `json:"staged_photos"`
	Phase        model.SessionPhase  `json:"phase"`
	Notice       Notice              `json:"notice"`
	Receipt      *upload.Receipt     `json:"receipt,omitempty"`
}

// CanCapture reports whether the capture action is live.
func (s Session) CanCapture() bool {
	return s.Phase == model.PhaseReadyToCapture && s.CurrentIndex < s.Total
}

// CanUpload reports whether a manual upload may be triggered.
func (s Session) CanUpload() bool {
	return s.Phase == model.PhaseUploadFailed && len(s.StagedPhotos) == s.Total
}

func (s Session) Done() bool {
	return s.Phase == model.PhaseUploadSucceeded
}
