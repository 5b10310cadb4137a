// Package api exposes the admin HTTP interface: event ingestion and
// inspection, rule list editing, delivery settings, manual sweeps.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"callrelay/internal/filter"
	"callrelay/internal/model"
	"callrelay/internal/processor"
	"callrelay/internal/storage"
)

// Pipeline is the processor surface the API needs.
type Pipeline interface {
	Process(ctx context.Context, ev *model.Event, silent bool) error
	ProcessPending(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	engine   *gin.Engine
	store    storage.Storage
	settings *processor.Settings
	pipeline Pipeline
	acceptor string
	log      *slog.Logger
}

// New creates the admin server and registers its routes.
func New(store storage.Storage, settings *processor.Settings, pipeline Pipeline,
	acceptor string, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		store:    store,
		settings: settings,
		pipeline: pipeline,
		acceptor: acceptor,
		log:      log,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.POST("/events", s.handleIngest)
		api.GET("/events", s.handleListEvents)
		api.GET("/events/pending", s.handleListPending)
		api.DELETE("/events", s.handleClearEvents)
		api.DELETE("/events/:start/:acceptor", s.handleDeleteEvent)
		api.POST("/events/read", s.handleMarkRead)
		api.GET("/status", s.handleStatus)

		api.GET("/lists/:name", s.handleGetList)
		api.PUT("/lists/:name", s.handleReplaceList)
		api.POST("/lists/:name", s.handleAddToList)
		api.DELETE("/lists/:name", s.handleRemoveFromList)

		api.PUT("/location", s.handlePutLocation)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
		api.POST("/process", s.handleProcessPending)
	}

	return s
}

// Handler returns the underlying HTTP handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type eventRequest struct {
	StartTime  int64   `json:"start_time" binding:"required"`
	Phone      string  `json:"phone" binding:"required"`
	IsIncoming bool    `json:"is_incoming"`
	EndTime    *int64  `json:"end_time"`
	IsMissed   bool    `json:"is_missed"`
	Text       *string `json:"text"`
	Details    string  `json:"details"`
}

type eventResponse struct {
	StartTime   int64           `json:"start_time"`
	Acceptor    string          `json:"acceptor"`
	Phone       string          `json:"phone"`
	IsIncoming  bool            `json:"is_incoming"`
	EndTime     *int64          `json:"end_time,omitempty"`
	IsMissed    bool            `json:"is_missed"`
	Text        *string         `json:"text,omitempty"`
	Location    *model.Location `json:"location,omitempty"`
	Details     string          `json:"details,omitempty"`
	IsRead      bool            `json:"is_read"`
	State       string          `json:"state"`
	Status      string          `json:"status"`
	ProcessTime *int64          `json:"process_time,omitempty"`
}

func toResponse(ev *model.Event) eventResponse {
	return eventResponse{
		StartTime:   ev.StartTime,
		Acceptor:    ev.Acceptor,
		Phone:       ev.Phone,
		IsIncoming:  ev.IsIncoming,
		EndTime:     ev.EndTime,
		IsMissed:    ev.IsMissed,
		Text:        ev.Text,
		Location:    ev.Location,
		Details:     ev.Details,
		IsRead:      ev.IsRead,
		State:       string(ev.State),
		Status:      ev.Status.String(),
		ProcessTime: ev.ProcessTime,
	}
}

// handleIngest accepts one event from an event source and runs it
// through the pipeline interactively.
func (s *Server) handleIngest(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := &model.Event{
		StartTime:  req.StartTime,
		Acceptor:   s.acceptor,
		Phone:      req.Phone,
		IsIncoming: req.IsIncoming,
		EndTime:    req.EndTime,
		IsMissed:   req.IsMissed,
		Text:       req.Text,
		Details:    req.Details,
		State:      model.StatePending,
	}

	if err := s.pipeline.Process(c.Request.Context(), ev, false); err != nil {
		s.log.Error("process event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(ev))
}

func (s *Server) handleListEvents(c *gin.Context) {
	s.respondEvents(c, s.store.ListEvents)
}

func (s *Server) handleListPending(c *gin.Context) {
	s.respondEvents(c, s.store.ListPendingEvents)
}

func (s *Server) respondEvents(c *gin.Context, list func(context.Context) ([]model.Event, error)) {
	events, err := list(c.Request.Context())
	if err != nil {
		s.log.Error("list events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toResponse(&events[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleClearEvents(c *gin.Context) {
	if err := s.store.ClearEvents(c.Request.Context()); err != nil {
		s.log.Error("clear events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	start, err := strconv.ParseInt(c.Param("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time"})
		return
	}
	if err := s.store.DeleteEvent(c.Request.Context(), start, c.Param("acceptor")); err != nil {
		s.log.Error("delete event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkRead(c *gin.Context) {
	var req struct {
		Read *bool `json:"read" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read flag is required"})
		return
	}
	if err := s.store.MarkAllRead(c.Request.Context(), *req.Read); err != nil {
		s.log.Error("mark all read", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	unread, err := s.store.UnreadCount(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	pending, err := s.store.ListPendingEvents(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread, "pending": len(pending)})
}

func (s *Server) listName(c *gin.Context) (storage.ListName, bool) {
	name, err := storage.ParseListName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return "", false
	}
	return name, true
}

func (s *Server) handleGetList(c *gin.Context) {
	name, ok := s.listName(c)
	if !ok {
		return
	}
	items, err := s.store.GetList(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if items == nil {
		items = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleReplaceList(c *gin.Context) {
	name, ok := s.listName(c)
	if !ok {
		return
	}
	var req struct {
		Items []string `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if name == storage.ListTextBlacklist || name == storage.ListTextWhitelist {
		for _, item := range req.Items {
			if err := filter.ValidatePattern(item); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
	}
	if err := s.store.ReplaceList(c.Request.Context(), name, req.Items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAddToList(c *gin.Context) {
	name, ok := s.listName(c)
	if !ok {
		return
	}
	item, ok := s.bindListItem(c)
	if !ok {
		return
	}
	if err := s.store.AddToList(c.Request.Context(), name, item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveFromList(c *gin.Context) {
	name, ok := s.listName(c)
	if !ok {
		return
	}
	item, ok := s.bindListItem(c)
	if !ok {
		return
	}
	if err := s.store.RemoveFromList(c.Request.Context(), name, item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

func (s *Server) bindListItem(c *gin.Context) (string, bool) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return "", false
	}
	return req.Value, true
}

func (s *Server) handlePutLocation(c *gin.Context) {
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}
	loc := model.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := s.store.PutLastLocation(c.Request.Context(), loc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s.store.Flush()
	c.Status(http.StatusNoContent)
}

type settingsResponse struct {
	Sender         string   `json:"sender"`
	Recipients     []string `json:"recipients"`
	Triggers       []string `json:"triggers"`
	MarkReadOnSend bool     `json:"mark_read_on_send"`
	NotifySuccess  bool     `json:"notify_success"`
}

func (s *Server) handleGetSettings(c *gin.Context) {
	triggers := s.settings.Triggers()
	names := make([]string, 0, len(triggers))
	for _, t := range triggers {
		names = append(names, string(t))
	}
	c.JSON(http.StatusOK, settingsResponse{
		Sender:         s.settings.Sender(),
		Recipients:     s.settings.Recipients(),
		Triggers:       names,
		MarkReadOnSend: s.settings.MarkReadOnSend(),
		NotifySuccess:  s.settings.NotifySuccess(),
	})
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req struct {
		Sender         *string   `json:"sender"`
		Recipients     *[]string `json:"recipients"`
		Triggers       *[]string `json:"triggers"`
		MarkReadOnSend *bool     `json:"mark_read_on_send"`
		NotifySuccess  *bool     `json:"notify_success"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Triggers != nil {
		triggers := make([]model.Trigger, 0, len(*req.Triggers))
		for _, raw := range *req.Triggers {
			t, err := model.ParseTrigger(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			triggers = append(triggers, t)
		}
		s.settings.SetTriggers(triggers)
	}
	if req.Sender != nil {
		s.settings.SetSender(*req.Sender)
	}
	if req.Recipients != nil {
		s.settings.SetRecipients(*req.Recipients)
	}
	if req.MarkReadOnSend != nil {
		s.settings.SetMarkReadOnSend(*req.MarkReadOnSend)
	}
	if req.NotifySuccess != nil {
		s.settings.SetNotifySuccess(*req.NotifySuccess)
	}
	c.Status(http.StatusNoContent)
}

// handleProcessPending runs one retry sweep immediately.
func (s *Server) handleProcessPending(c *gin.Context) {
	if err := s.pipeline.ProcessPending(c.Request.Context()); err != nil {
		s.log.Error("process pending", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
