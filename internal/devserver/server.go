// Package devserver is a small stand-in for the dispatch backend, used for
// local development and as the HTTP peer in tests.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fieldops/internal/fieldapi"
	"fieldops/internal/fsstore"
	"fieldops/internal/model"
	"fieldops/internal/upload"
)

const maxPartBytes = 32 << 20

type Options struct {
	Fixtures Fixtures
	// UploadDir receives one directory per accepted batch.
	UploadDir string
	// ExpectedParts rejects batches with a different part count; 0 accepts any.
	ExpectedParts int
	// FailUploads makes the next n photo uploads answer 502.
	FailUploads int
	Logger      *zap.Logger
}

// Batch is an accepted photo upload.
type Batch struct {
	ID         string    `json:"batch_id"`
	LoadNumber string    `json:"load_number,omitempty"`
	Files      []string  `json:"files"`
	Dir        string    `json:"-"`
	Received   time.Time `json:"received"`
}

type Server struct {
	fixtures  Fixtures
	uploadDir string
	expected  int
	logger    *zap.Logger

	mu          sync.Mutex
	failUploads int
	batches     []Batch
}

func New(opts Options) (*Server, error) {
	if err := opts.Fixtures.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.UploadDir) == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := fsstore.Mkdir(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", opts.UploadDir, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		fixtures:    opts.Fixtures,
		uploadDir:   opts.UploadDir,
		expected:    opts.ExpectedParts,
		failUploads: opts.FailUploads,
		logger:      logger,
	}, nil
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/loads", s.handleLoads).Methods(http.MethodGet)
	r.HandleFunc("/delivery", s.handleDelivery).Methods(http.MethodGet)
	r.HandleFunc("/photos", s.handlePhotos).Methods(http.MethodPost)
	r.Use(s.logRequests)
	return r
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
// ready, when non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Batch(nil), s.batches...)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("took", time.Since(started)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid login body", http.StatusBadRequest)
		return
	}
	u, ok := s.fixtures.user(req.Username, req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fieldapi.LoginSuccessMessage,
		"drv_Id":  u.DriverID,
		"carrId":  u.CarrierID,
	})
}

func (s *Server) handleLoads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := model.ParseLoadStatus(q.Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	driverID, carrierID := q.Get("drv_Id"), q.Get("carrId")
	if driverID == "" || carrierID == "" {
		http.Error(w, "drv_Id and carrId are required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.fixtures.loads(driverID, carrierID, status))
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	loadID := r.URL.Query().Get("loadid")
	if loadID == "" {
		http.Error(w, "loadid is required", http.StatusBadRequest)
		return
	}
	if !s.fixtures.hasLoad(loadID) {
		http.Error(w, "unknown load", http.StatusNotFound)
		return
	}
	out := []model.DeliveryDetail{}
	for _, c := range s.fixtures.Deliveries[loadID] {
		out = append(out, model.DeliveryDetail{DriverName: c.Name, DriverPhone: c.Phone})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failing := s.failUploads > 0
	if failing {
		s.failUploads--
	}
	s.mu.Unlock()
	if failing {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "upstream storage unavailable", http.StatusBadGateway)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	batch := Batch{ID: uuid.NewString(), Received: time.Now().UTC()}
	batch.Dir = filepath.Join(s.uploadDir, batch.ID)
	if err := fsstore.Mkdir(batch.Dir, 0o755); err != nil {
		http.Error(w, "cannot store batch", http.StatusInternalServerError)
		return
	}
	stored := false
	defer func() {
		if !stored {
			_ = os.RemoveAll(batch.Dir)
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, "malformed multipart body", http.StatusBadRequest)
			return
		}
		name, err := checkPart(part.FormName(), part.FileName(), part.Header.Get("Content-Type"))
		if err != nil {
			part.Close()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(part, maxPartBytes+1))
		part.Close()
		if err != nil || len(data) > maxPartBytes {
			http.Error(w, "photo part too large or unreadable", http.StatusBadRequest)
			return
		}
		if err := fsstore.WriteBytes(filepath.Join(batch.Dir, name), data, 0o644); err != nil {
			http.Error(w, "cannot store photo", http.StatusInternalServerError)
			return
		}
		batch.Files = append(batch.Files, name)
	}

	if len(batch.Files) == 0 || (s.expected > 0 && len(batch.Files) != s.expected) {
		http.Error(w, fmt.Sprintf("expected %d photos, got %d", s.expected, len(batch.Files)), http.StatusBadRequest)
		return
	}
	batch.LoadNumber = s.loadNumberFor(batch.Files)
	stored = true

	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	s.logger.Info("photo batch stored", zap.String("batch", batch.ID), zap.String("load", batch.LoadNumber), zap.Int("photos", len(batch.Files)))
	writeJSON(w, http.StatusCreated, batch)
}

func checkPart(formName, fileName, contentType string) (string, error) {
	if formName != upload.FieldName {
		return "", fmt.Errorf("unexpected form field %q", formName)
	}
	name := filepath.Base(fileName)
	if name != fileName || name == "." || name == "" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != upload.ImageContentType {
		return "", fmt.Errorf("part %s must be %s", name, upload.ImageContentType)
	}
	return name, nil
}

// loadNumberFor finds the longest fixture load id every file name starts with.
func (s *Server) loadNumberFor(files []string) string {
	ids := make([]string, 0, len(s.fixtures.Loads))
	for _, l := range s.fixtures.Loads {
		ids = append(ids, l.LoadID)
	}
	sort.Slice(ids, func(i, j int) bool { return len(ids[i]) > len(ids[j]) })
	for _, id := range ids {
		match := true
		for _, f := range files {
			if !strings.HasPrefix(f, id) {
				match = false
				break
			}
		}
		if match {
			return id
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
