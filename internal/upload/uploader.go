// Package upload sends the staged photos of a load as one multipart batch.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"fieldops/internal/model"
)

const (
	FieldName        = "photos"
	ImageContentType = "image/jpeg"
)

// ErrIncompleteBatch reports a caller bug: the batch size did not match the
// checklist. No request is sent.
var ErrIncompleteBatch = errors.New("photo batch is incomplete")

// Error is a failed upload attempt: either the transport failed or the
// backend answered with a non-success status.
type Error struct {
	LoadNumber string
	StatusCode int
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload photos for load %s: server returned %d: %s", e.LoadNumber, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("upload photos for load %s: %s", e.LoadNumber, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Receipt struct {
	StatusCode int
	Parts      int
	Took       time.Duration
}

type Uploader struct {
	endpoint string
	expected int
	client   *http.Client
	logger   *zap.Logger
}

type Option func(*Uploader)

func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) {
		if c != nil {
			u.client = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// New returns an uploader posting to endpoint. expected is the exact number of
// photos every batch must contain.
func New(endpoint string, expected int, opts ...Option) *Uploader {
	u := &Uploader{
		endpoint: strings.TrimSpace(endpoint),
		expected: expected,
		client:   http.DefaultClient,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) Endpoint() string {
	return u.endpoint
}

// Upload posts all photos in a single request. It never retries.
func (u *Uploader) Upload(ctx context.Context, loadNumber string, photos []model.StagedPhoto) (Receipt, error) {
	if len(photos) != u.expected {
		return Receipt{}, fmt.Errorf("%w: have %d photos, need %d", ErrIncompleteBatch, len(photos), u.expected)
	}
	for i, p := range photos {
		if p.FileName == "" || p.LocalPath == "" {
			return Receipt{}, fmt.Errorf("%w: photo %d has no file", ErrIncompleteBatch, i)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, photos))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Receipt{}, &Error{LoadNumber: loadNumber, Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log := u.logger.With(zap.String("load", loadNumber), zap.String("endpoint", u.endpoint))
	log.Info("uploading photo batch", zap.Int("parts", len(photos)))

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		log.Warn("photo upload failed", zap.Error(err))
		return Receipt{}, &Error{LoadNumber: loadNumber, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	_ = pr.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		log.Warn("photo upload rejected", zap.Int("status", resp.StatusCode), zap.String("reason", reason))
		return Receipt{}, &Error{LoadNumber: loadNumber, StatusCode: resp.StatusCode, Reason: reason}
	}

	receipt := Receipt{StatusCode: resp.StatusCode, Parts: len(photos), Took: time.Since(start)}
	log.Info("photo batch accepted", zap.Int("status", resp.StatusCode), zap.Duration("took", receipt.Took))
	return receipt, nil
}

func writeParts(mw *multipart.Writer, photos []model.StagedPhoto) error {
	for _, p := range photos {
		if err := writePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, p model.StagedPhoto) error {
	f, err := os.Open(p.LocalPath)
	if err != nil {
		return fmt.Errorf("open staged photo %s: %w", p.FileName, err)
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, p.FileName))
	h.Set("Content-Type", ImageContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", p.FileName, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("write part %s: %w", p.FileName, err)
	}
	return nil
}
