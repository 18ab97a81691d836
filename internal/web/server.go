package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"is31ledd/internal/ledservice"
	"is31ledd/internal/logging"
)

//go:embed assets/*
var embeddedAssets embed.FS

const maxBodyBytes = 4 << 10

// Controller is the LED service as seen by the HTTP API.
// *ledservice.Service implements it.
type Controller interface {
	Snapshot() ledservice.Snapshot
	Channel(index int) (ledservice.ChannelState, error)
	SetDuty(index, duty int) error
	SetAll(duty int) error
	Frequency() (int, error)
	SetFrequency(hz int) error
	Reset() error
	Subscribe() (<-chan ledservice.Snapshot, func())
}

type Options struct {
	// Logs and Hub are optional; their routes are not mounted when nil.
	Logs   *LogBuffer
	Hub    *Hub
	Logger *slog.Logger
}

type server struct {
	ctl Controller
	log *slog.Logger
}

// DutyRequest is the body of PUT /api/channels and /api/channels/{index}.
type DutyRequest struct {
	Duty *int `json:"duty"`
}

// FrequencyRequest is the body of PUT /api/frequency.
type FrequencyRequest struct {
	Hz *int `json:"hz"`
}

type FrequencyResponse struct {
	Hz int `json:"hz"`
}

type ChannelsResponse struct {
	Channels []ledservice.ChannelState `json:"channels"`
}

func Handler(ctl Controller, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := &server{ctl: ctl, log: log.With("component", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/about", AboutHandler().ServeHTTP)

		r.Get("/channels", s.handleChannels)
		r.Put("/channels", s.handleSetAll)
		r.Get("/channels/{index}", s.handleChannel)
		r.Put("/channels/{index}", s.handleSetChannel)

		r.Get("/frequency", s.handleFrequency)
		r.Put("/frequency", s.handleSetFrequency)

		r.Post("/reset", s.handleReset)

		if opts.Logs != nil {
			r.Get("/logs", opts.Logs.Handler().ServeHTTP)
		}
		if opts.Hub != nil {
			r.Get("/ws", opts.Hub.ServeHTTP)
		}
	})

	if assetsFS, err := fs.Sub(embeddedAssets, "assets"); err == nil {
		r.Handle("/*", http.FileServer(http.FS(assetsFS)))
	}
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func channelIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("channel index %q is not an integer", raw)
	}
	return idx, nil
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ChannelsResponse{Channels: s.ctl.Snapshot().Channels})
}

func (s *server) handleChannel(w http.ResponseWriter, r *http.Request) {
	idx, err := channelIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	st, err := s.ctl.Channel(idx)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	idx, err := channelIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	var req DutyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Duty == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "duty is required")
		return
	}
	if err := s.ctl.SetDuty(idx, *req.Duty); err != nil {
		writeDriverError(w, err)
		return
	}
	s.log.Info("channel set", "channel", idx, "duty", *req.Duty)
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Channels[idx])
}

func (s *server) handleSetAll(w http.ResponseWriter, r *http.Request) {
	var req DutyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Duty == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "duty is required")
		return
	}
	if err := s.ctl.SetAll(*req.Duty); err != nil {
		writeDriverError(w, err)
		return
	}
	s.log.Info("all channels set", "duty", *req.Duty)
	writeJSON(w, http.StatusOK, ChannelsResponse{Channels: s.ctl.Snapshot().Channels})
}

func (s *server) handleFrequency(w http.ResponseWriter, _ *http.Request) {
	hz, err := s.ctl.Frequency()
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FrequencyResponse{Hz: hz})
}

func (s *server) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	var req FrequencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Hz == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "hz is required")
		return
	}
	if err := s.ctl.SetFrequency(*req.Hz); err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FrequencyResponse{Hz: *req.Hz})
}

func (s *server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctl.Reset(); err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}
