// Package capture drives one pickup photo session: permission, the ordered
// checklist of shots, staging and the final batch upload.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldops/internal/checklist"
	"fieldops/internal/device"
	"fieldops/internal/model"
	"fieldops/internal/staging"
	"fieldops/internal/upload"
)

type Camera interface {
	RequestPermission(ctx context.Context) (device.PermissionState, error)
	Capture(ctx context.Context) (device.RawImage, error)
}

type Stager interface {
	Stage(src, label, fileName string) (model.StagedPhoto, error)
	Purge(photos []model.StagedPhoto) error
}

type BatchUploader interface {
	Upload(ctx context.Context, loadNumber string, photos []model.StagedPhoto) (upload.Receipt, error)
}

type Options struct {
	LoadNumber string
	Checklist  []model.ChecklistItem
	Camera     Camera
	Store      Stager
	Uploader   BatchUploader
	Logger     *zap.Logger
}

// Controller is the sole owner of a capture session. Every operation blocks
// until the device, store or backend has answered; the session lock is never
// held across those calls, so concurrent callers are turned away with ErrBusy.
type Controller struct {
	camera   Camera
	store    Stager
	uploader BatchUploader
	logger   *zap.Logger

	mu              sync.Mutex
	busy            bool
	permissionAsked bool
	seq             *checklist.Sequencer
	manifest        staging.Manifest
	id              string
	loadNumber      string
	phase           model.SessionPhase
	notice          Notice
	receipt         *upload.Receipt
}

func New(opts Options) (*Controller, error) {
	if err := staging.ValidateLoadNumber(opts.LoadNumber); err != nil {
		return nil, err
	}
	if opts.Camera == nil || opts.Store == nil || opts.Uploader == nil {
		return nil, errors.New("capture: camera, store and uploader are required")
	}
	items := opts.Checklist
	if items == nil {
		items = checklist.Pickup()
	}
	seq, err := checklist.NewSequencer(items)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	c := &Controller{
		camera:     opts.Camera,
		store:      opts.Store,
		uploader:   opts.Uploader,
		logger:     logger.With(zap.String("session", id), zap.String("load", opts.LoadNumber)),
		seq:        seq,
		id:         id,
		loadNumber: opts.LoadNumber,
	}
	if err := c.setPhase(model.PhaseAwaitingPermission); err != nil {
		return nil, err
	}
	c.notice = Notice{Level: NoticeInfo, Message: "Loading camera permissions..."}
	return c, nil
}

// Start asks for camera permission the first time the workflow opens.
// Later calls are no-ops; use RequestPermission to re-ask after a denial.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	asked := c.permissionAsked
	c.mu.Unlock()
	if asked {
		return nil
	}
	return c.RequestPermission(ctx)
}

func (c *Controller) RequestPermission(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	switch c.phase {
	case model.PhaseAwaitingPermission, model.PhasePermissionDenied:
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: permission already resolved (%s)", ErrNotReady, c.phase)
	}
	c.busy = true
	c.permissionAsked = true
	c.mu.Unlock()

	state, err := c.camera.RequestPermission(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err == nil && state != device.PermissionGranted {
		err = errPermissionDeny
	}
	if err != nil {
		if perr := c.setPhase(model.PhasePermissionDenied); perr != nil {
			return perr
		}
		c.notice = Notice{Level: NoticeError, Kind: KindPermission, Message: "We need your permission to access the camera."}
		c.logger.Info("camera permission not granted", zap.Error(err))
		return &Error{Kind: KindPermission, Op: "request permission", Err: err}
	}
	if perr := c.setPhase(model.PhaseReadyToCapture); perr != nil {
		return perr
	}
	c.notice = c.promptLocked("")
	c.logger.Info("camera permission granted", zap.Int("index", c.seq.Index()))
	return nil
}

// Capture takes the shot for the current checklist position. When it was the
// last one the batch upload starts immediately and Capture returns its outcome.
func (c *Controller) Capture(ctx context.Context) error {
	c.mu.Lock()
	if err := c.gateCaptureLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	item, ok := c.seq.Current()
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: checklist already complete", ErrNotReady)
	}
	index := c.seq.Index()
	if err := c.setPhase(model.PhaseCapturing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.mu.Unlock()

	photo, err := c.shoot(ctx, item)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		next := model.PhaseReadyToCapture
		if errors.Is(err, device.ErrPermission) {
			next = model.PhasePermissionDenied
		}
		defer c.mu.Unlock()
		if perr := c.setPhase(next); perr != nil {
			return perr
		}
		c.notice = failureNotice(err)
		return err
	}

	if err := c.manifest.Put(index, photo); err != nil {
		defer c.mu.Unlock()
		if perr := c.setPhase(model.PhaseReadyToCapture); perr != nil {
			return perr
		}
		return c.recordFailedLocked(item, err)
	}
	c.seq.Advance()
	c.logger.Info("shot captured", zap.String("label", item.Label), zap.Int("index", c.seq.Index()))

	if !c.seq.IsComplete() {
		defer c.mu.Unlock()
		if err := c.setPhase(model.PhaseReadyToCapture); err != nil {
			return err
		}
		c.notice = c.promptLocked(fmt.Sprintf("Captured %s. ", item.Description))
		return nil
	}

	photos, err := c.beginUploadLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.runUpload(ctx, photos)
}

// Recapture replaces an already staged shot in place. The checklist position
// does not move and no upload is triggered.
func (c *Controller) Recapture(ctx context.Context, label string) error {
	c.mu.Lock()
	if c.busy || c.phase == model.PhaseCapturing || c.phase == model.PhaseUploading {
		c.mu.Unlock()
		return ErrBusy
	}
	prev := c.phase
	if prev != model.PhaseReadyToCapture && prev != model.PhaseUploadFailed {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot re-capture in %s", ErrNotReady, prev)
	}
	item, ok := c.seq.Lookup(label)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown checklist label %q", label)
	}
	index := c.manifest.IndexOf(item.Label)
	if index < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotCaptured, item.Label)
	}
	if err := c.setPhase(model.PhaseCapturing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.mu.Unlock()

	photo, err := c.shoot(ctx, item)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if perr := c.setPhase(prev); perr != nil {
		return perr
	}
	if err != nil {
		c.notice = failureNotice(err)
		return err
	}
	if err := c.manifest.Put(index, photo); err != nil {
		return c.recordFailedLocked(item, err)
	}
	c.notice = Notice{Level: NoticeSuccess, Message: fmt.Sprintf("Replaced %s photo.", item.Description)}
	c.logger.Info("shot re-captured", zap.String("label", item.Label))
	return nil
}

// Upload re-sends the full batch after a failed attempt.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.busy || c.phase == model.PhaseUploading || c.phase == model.PhaseCapturing {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.phase != model.PhaseUploadFailed {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: upload not available in %s", ErrNotReady, phase)
	}
	photos, err := c.beginUploadLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.runUpload(ctx, photos)
}

// Purge removes the staged files once the batch has been accepted.
func (c *Controller) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseUploadSucceeded {
		return fmt.Errorf("%w: staged photos are kept until the upload succeeds", ErrNotReady)
	}
	return c.store.Purge(c.manifest.Photos())
}

func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Session{
		ID:           c.id,
		LoadNumber:   c.loadNumber,
		CurrentIndex: c.seq.Index(),
		Total:        c.seq.Len(),
		StagedPhotos: c.manifest.Photos(),
		Phase:        c.phase,
		Notice:       c.notice,
	}
	if c.receipt != nil {
		r := *c.receipt
		s.Receipt = &r
	}
	return s
}

// Current is the next item to capture; false once all shots are staged.
func (c *Controller) Current() (model.ChecklistItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq.Current()
}

func (c *Controller) Checklist() []model.ChecklistItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq.Items()
}

func (c *Controller) gateCaptureLocked() error {
	if c.busy {
		return ErrBusy
	}
	switch c.phase {
	case model.PhaseReadyToCapture:
		return nil
	case model.PhaseCapturing, model.PhaseUploading:
		return ErrBusy
	case model.PhaseAwaitingPermission, model.PhasePermissionDenied:
		return fmt.Errorf("%w: camera permission required", ErrNotReady)
	default:
		return fmt.Errorf("%w: cannot capture in %s", ErrNotReady, c.phase)
	}
}

// beginUploadLocked enforces the batch precondition and enters Uploading.
func (c *Controller) beginUploadLocked() ([]model.StagedPhoto, error) {
	if c.manifest.Len() != c.seq.Len() {
		return nil, fmt.Errorf("%w: have %d of %d photos", upload.ErrIncompleteBatch, c.manifest.Len(), c.seq.Len())
	}
	if err := c.setPhase(model.PhaseUploading); err != nil {
		return nil, err
	}
	c.busy = true
	c.notice = Notice{Level: NoticeInfo, Message: "Uploading photos..."}
	return c.manifest.Photos(), nil
}

func (c *Controller) runUpload(ctx context.Context, photos []model.StagedPhoto) error {
	receipt, err := c.uploader.Upload(ctx, c.loadNumber, photos)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		if perr := c.setPhase(model.PhaseUploadFailed); perr != nil {
			return perr
		}
		c.notice = Notice{Level: NoticeError, Kind: KindUpload, Message: "Failed to upload photos. Please try again."}
		c.logger.Warn("photo batch upload failed", zap.Error(err))
		return &Error{Kind: KindUpload, Op: "upload", Err: err}
	}
	if err := c.setPhase(model.PhaseUploadSucceeded); err != nil {
		return err
	}
	c.receipt = &receipt
	c.notice = Notice{Level: NoticeSuccess, Message: "Photos uploaded successfully!"}
	return nil
}

// shoot fires the camera and stages the result. It runs without the lock.
func (c *Controller) shoot(ctx context.Context, item model.ChecklistItem) (model.StagedPhoto, error) {
	img, err := c.camera.Capture(ctx)
	if err != nil {
		kind := KindCapture
		if errors.Is(err, device.ErrPermission) {
			kind = KindPermission
		}
		c.logger.Warn("capture failed", zap.String("label", item.Label), zap.Error(err))
		return model.StagedPhoto{}, &Error{Kind: kind, Op: "shoot " + item.Label, Err: err}
	}
	photo, err := c.store.Stage(img.Path, item.Label, checklist.FileName(c.loadNumber, item.Label))
	if err != nil {
		c.logger.Warn("staging failed", zap.String("label", item.Label), zap.Error(err))
		return model.StagedPhoto{}, &Error{Kind: KindStorage, Op: "stage " + item.Label, Err: err}
	}
	return photo, nil
}

// recordFailedLocked reports a staged shot that could not be entered into the
// manifest. The file stays on disk and is overwritten by the next attempt.
func (c *Controller) recordFailedLocked(item model.ChecklistItem, err error) error {
	c.logger.Error("manifest update failed", zap.String("label", item.Label), zap.Error(err))
	werr := &Error{Kind: KindStorage, Op: "record " + item.Label, Err: err}
	c.notice = failureNotice(werr)
	return werr
}

func (c *Controller) setPhase(to model.SessionPhase) error {
	if err := model.CheckPhaseTransition(c.phase, to); err != nil {
		c.logger.Error("rejected phase transition", zap.Error(err))
		return err
	}
	if c.phase != to {
		c.logger.Debug("phase", zap.String("from", string(c.phase)), zap.String("to", string(to)))
	}
	c.phase = to
	return nil
}

func (c *Controller) promptLocked(prefix string) Notice {
	item, ok := c.seq.Current()
	if !ok {
		return Notice{Level: NoticeInfo, Message: strings.TrimSpace(prefix)}
	}
	return Notice{Level: NoticeInfo, Message: prefix + "Take a photo of the: " + item.Description}
}

func failureNotice(err error) Notice {
	switch KindOf(err) {
	case KindPermission:
		return Notice{Level: NoticeError, Kind: KindPermission, Message: "Camera access was revoked. Grant permission to continue."}
	case KindStorage:
		return Notice{Level: NoticeError, Kind: KindStorage, Message: "Failed to save the photo. Please try again."}
	default:
		if errors.Is(err, device.ErrCancelled) {
			return Notice{Level: NoticeError, Kind: KindCapture, Message: "Capture cancelled. Please try again."}
		}
		return Notice{Level: NoticeError, Kind: KindCapture, Message: "Failed to take the photo. Please try again."}
	}
}
