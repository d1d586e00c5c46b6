package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/intake"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/pipeline"
	"github.com/red-atencion/outreach-cli/internal/store"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

var servePort int

// maxUploadBytes bounds a single spreadsheet upload.
const maxUploadBytes = 64 << 20

// runner is the part of the pipeline the server drives.
type runner interface {
	Run(ctx context.Context, source string, incoming []model.CaseRecord) (*pipeline.Result, error)
}

type runLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// intakeServer accepts case files over HTTP. Runs are serialized because
// every run rewrites the whole stored batch.
type intakeServer struct {
	pipeline runner
	runs     runLister
	opts     intake.Options
	mu       sync.Mutex
}

func newRouter(s *intakeServer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/runs", s.handleCreateRun)
	r.Get("/runs", s.handleListRuns)
	return r
}

func (s *intakeServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(
		zap.String("component", "serve"),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large or unreadable")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "http upload"
	}

	incoming, err := s.decode(r.Header.Get("Content-Type"), data)
	if err != nil {
		log.Warn("rejected upload", zap.Error(err))
		status := http.StatusBadRequest
		if errors.Is(err, intake.ErrMissingColumn) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	s.mu.Lock()
	result, err := s.pipeline.Run(r.Context(), source, incoming)
	s.mu.Unlock()
	if err != nil {
		log.Error("run failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, zone.ErrZoneSetUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, result.Run)
}

// decode picks the reader from the content type; anything that is not CSV is
// treated as a spreadsheet.
func (s *intakeServer) decode(contentType string, data []byte) ([]model.CaseRecord, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "text/csv" {
		return intake.ReadCSV(bytes.NewReader(data), s.opts)
	}
	return intake.ReadSpreadsheet(data, s.opts)
}

func (s *intakeServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP intake server for case spreadsheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts, err := cfg.IntakeOptions()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(&intakeServer{pipeline: env.Pipeline, runs: env.Store, opts: opts}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
