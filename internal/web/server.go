package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/page"
)

// Config configures the HTTP surface.
type Config struct {
	Addr string
	// ActionRate is the number of power actions per second allowed per host;
	// zero disables throttling.
	ActionRate  float64
	ActionBurst int
	// StatusConcurrency bounds parallel status queries of a power page.
	StatusConcurrency int
}

// Server serves the registry's pages over HTTP.
type Server struct {
	cfg      Config
	reg      *page.Registry
	hub      *Hub
	limiter  *actionLimiter
	upgrader websocket.Upgrader
	log      *slog.Logger

	// actx outlives single requests: background loops and power actions
	// started over HTTP run under it.
	actx    context.Context
	actions sync.WaitGroup
	srv     *http.Server
}

// NewServer creates a Server. hub must be the one registered as observer of
// the registry's pages.
func NewServer(cfg Config, reg *page.Registry, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		reg:     reg,
		hub:     hub,
		limiter: newActionLimiter(cfg.ActionRate, cfg.ActionBurst),
		log:     log,
		actx:    context.Background(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.serveWS)

	mux.HandleFunc("GET /api/pages", s.listPages)

	mux.HandleFunc("GET /api/watt/{key}", s.showWatt)
	mux.HandleFunc("POST /api/watt/{key}/controls", s.updateControls)
	mux.HandleFunc("POST /api/watt/{key}/refresh", s.refreshWatt)
	mux.HandleFunc("GET /api/watt/{key}/records.csv", s.downloadRecords)
	mux.HandleFunc("DELETE /api/watt/{key}/records", s.resetRecords)

	mux.HandleFunc("GET /api/power/{key}", s.showPower)
	mux.HandleFunc("POST /api/power/{key}/status", s.refreshPower)
	mux.HandleFunc("POST /api/power/{key}/auto_status", s.setAutoStatus)
	mux.HandleFunc("POST /api/power/{key}/hosts/{host}/{action}", s.powerAction)

	return mux
}

// Start serves until ctx ends, then shuts down gracefully and waits for
// running power actions.
func (s *Server) Start(ctx context.Context) error {
	s.actx = ctx
	go s.hub.Run(ctx)

	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http server", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.srv.Shutdown(shutdownCtx)
		s.actions.Wait()
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("ws: upgrade failed", "error", err)
		return
	}
	c := newClient(s.hub, conn, s.log)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newPagesView(s.reg)})
}

func (s *Server) wattPage(w http.ResponseWriter, r *http.Request) *page.WattPage {
	p := s.reg.WattPage(r.PathValue("key"))
	if p == nil {
		JSONError(w, http.StatusNotFound, "Page not found")
	}
	return p
}

func (s *Server) powerPage(w http.ResponseWriter, r *http.Request) *page.PowerPage {
	p := s.reg.PowerPage(r.PathValue("key"))
	if p == nil {
		JSONError(w, http.StatusNotFound, "Page not found")
	}
	return p
}

func (s *Server) showWatt(w http.ResponseWriter, r *http.Request) {
	p := s.wattPage(w, r)
	if p == nil {
		return
	}
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newWattView(p)})
}

// controlsRequest is a partial update; absent fields keep their value.
// Target and Manual are in seconds.
type controlsRequest struct {
	AutoRefresh *bool    `json:"auto_refresh"`
	Target      *float64 `json:"target" validate:"omitempty,gte=1"`
	Manual      *float64 `json:"manual" validate:"omitempty,gte=-5,lte=5"`
	AutoCorrect *bool    `json:"auto_correct"`
	Record      *bool    `json:"record"`
	Selection   []string `json:"selection" validate:"omitempty,dive,required"`
}

func (s *Server) updateControls(w http.ResponseWriter, r *http.Request) {
	p := s.wattPage(w, r)
	if p == nil {
		return
	}
	var req controlsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateStruct(req); len(errs) > 0 {
		JSONValidationError(w, errs)
		return
	}
	for _, h := range req.Selection {
		if !hasHost(p, h) {
			JSONValidationError(w, map[string]string{"selection": "Unknown host " + h + "."})
			return
		}
	}

	wasAuto := p.Controls().AutoRefresh
	ctl := p.UpdateControls(func(c *engine.Controls) {
		if req.AutoRefresh != nil {
			c.AutoRefresh = *req.AutoRefresh
		}
		if req.Target != nil {
			c.Target = seconds(*req.Target)
		}
		if req.Manual != nil {
			c.Manual = seconds(*req.Manual)
		}
		if req.AutoCorrect != nil {
			c.AutoCorrect = *req.AutoCorrect
		}
		if req.Record != nil {
			c.Record = *req.Record
		}
		if req.Selection != nil {
			// file order, not request order
			c.Selection = []string{}
			for _, h := range p.Cluster.Hosts {
				if slices.Contains(req.Selection, h.Name) {
					c.Selection = append(c.Selection, h.Name)
				}
			}
		}
	})
	if wasAuto && !ctl.AutoRefresh {
		// A loop still asleep must not carry this run over if auto-refresh
		// comes back before it wakes.
		p.Runner.Stop(r.Context())
	}
	if ctl.AutoRefresh && p.StartLoop(s.actx) {
		s.log.Info("control loop started", "page", p.Key())
	}
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newWattView(p)})
}

func (s *Server) refreshWatt(w http.ResponseWriter, r *http.Request) {
	p := s.wattPage(w, r)
	if p == nil {
		return
	}
	// Only the control loop may run cycles while auto-refresh is on.
	if p.Controls().AutoRefresh || p.Running() {
		JSONError(w, http.StatusConflict, "Auto refresh is running")
		return
	}
	rep := p.Refresh(r.Context())
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newReportView(rep)})
}

func (s *Server) downloadRecords(w http.ResponseWriter, r *http.Request) {
	p := s.wattPage(w, r)
	if p == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+p.Records.Filename()+`"`)
	if err := p.Records.WriteCSV(w); err != nil {
		s.log.Error("write records failed", "page", p.Key(), "error", err)
	}
}

func (s *Server) resetRecords(w http.ResponseWriter, r *http.Request) {
	p := s.wattPage(w, r)
	if p == nil {
		return
	}
	if err := p.Records.Reset(r.Context()); err != nil {
		s.log.Error("reset records failed", "page", p.Key(), "error", err)
		JSONError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	JSONSuccess(w, http.StatusOK, APIResponse{Message: "Records cleared."})
}

func (s *Server) showPower(w http.ResponseWriter, r *http.Request) {
	p := s.powerPage(w, r)
	if p == nil {
		return
	}
	if p.AutoStatus() {
		p.RefreshAll(r.Context(), s.cfg.StatusConcurrency)
	}
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newPowerView(p)})
}

func (s *Server) refreshPower(w http.ResponseWriter, r *http.Request) {
	p := s.powerPage(w, r)
	if p == nil {
		return
	}
	p.RefreshAll(r.Context(), s.cfg.StatusConcurrency)
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newPowerView(p)})
}

type autoStatusRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (s *Server) setAutoStatus(w http.ResponseWriter, r *http.Request) {
	p := s.powerPage(w, r)
	if p == nil {
		return
	}
	var req autoStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateStruct(req); len(errs) > 0 {
		JSONValidationError(w, errs)
		return
	}
	if err := p.SetAutoStatus(r.Context(), *req.Enabled); err != nil {
		s.log.Warn("auto status not saved", "page", p.Key(), "error", err)
	}
	JSONSuccess(w, http.StatusOK, APIResponse{Data: newPowerView(p)})
}

func (s *Server) powerAction(w http.ResponseWriter, r *http.Request) {
	p := s.powerPage(w, r)
	if p == nil {
		return
	}
	host := r.PathValue("host")
	res := p.Resolver(host)
	if res == nil {
		JSONError(w, http.StatusNotFound, "Host not found")
		return
	}
	action, err := page.ParseAction(r.PathValue("action"))
	if err != nil {
		JSONError(w, http.StatusNotFound, "Unknown action")
		return
	}

	if action == page.ActionStatus {
		if err := p.Do(r.Context(), host, action); err != nil {
			JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		JSONSuccess(w, http.StatusOK, APIResponse{Data: newStatusView(host, res.Status())})
		return
	}

	if !permitted(res, action) {
		JSONError(w, http.StatusConflict, "Action not permitted in current status")
		return
	}
	if !s.limiter.Allow(p.Key() + "/" + host) {
		JSONError(w, http.StatusTooManyRequests, "Too many actions, try again later")
		return
	}

	s.actions.Add(1)
	go func() {
		defer s.actions.Done()
		if err := p.Do(s.actx, host, action); err != nil {
			s.log.Warn("power action failed", "page", p.Key(), "host", host, "action", action, "error", err)
		}
	}()
	JSONSuccess(w, http.StatusAccepted, APIResponse{Message: "Action " + string(action) + " started."})
}

func permitted(r *engine.Resolver, a page.Action) bool {
	switch a {
	case page.ActionStart:
		return r.CanStart()
	case page.ActionShutdown:
		return r.CanShutdown()
	case page.ActionReset:
		return r.CanReset()
	}
	return true
}

func hasHost(p *page.WattPage, name string) bool {
	for _, h := range p.Cluster.Hosts {
		if h.Name == name {
			return true
		}
	}
	return false
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
