package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"worldsync/internal/adapter/console"
	"worldsync/internal/app/ports"
	"worldsync/internal/app/timesync"
	"worldsync/internal/app/weathersync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const defaultHistoryLimit = 100

type weatherControl interface {
	Start(location string) (weathersync.StartResult, error)
	Stop() weathersync.StopResult
	Status() weathersync.Status
}

type timeQuery interface {
	Realtime(ctx context.Context) (timesync.Response, error)
}

type consoleExecutor interface {
	Execute(ctx context.Context, line string) console.Result
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

type Handler struct {
	Weather weatherControl
	Time    timeQuery
	Journal ports.WeatherJournal
	Console consoleExecutor
	KPI     kpiSnapshotProvider
	// HistoryLimit caps /api/weather/history; zero means 100.
	HistoryLimit int
	// CORSOrigins is a comma separated origin list; empty or "*" allows any.
	CORSOrigins string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(newCORSPolicy(h.CORSOrigins)))

	weather := s.Group("/api/weather")
	weather.POST("/start", h.startWeather)
	weather.POST("/stop", h.stopWeather)
	weather.GET("/status", h.weatherStatus)
	weather.GET("/history", h.weatherHistory)

	s.GET("/api/time/realtime", h.realtime)
	s.POST("/api/console", h.console)
	s.GET("/ops/kpi", h.kpi)
	s.GET("/healthz", h.healthz)
}

type startWeatherRequest struct {
	Location string `json:"location"`
}

type consoleRequest struct {
	Line string `json:"line"`
}

type historyResponse struct {
	Events []ports.WeatherEventRecord `json:"events"`
}

func (h Handler) startWeather(_ context.Context, ctx *app.RequestContext) {
	var body startWeatherRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	resp, err := h.Weather.Start(body.Location)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) stopWeather(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.Weather.Stop())
}

func (h Handler) weatherStatus(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.Weather.Status())
}

func (h Handler) weatherHistory(c context.Context, ctx *app.RequestContext) {
	if h.Journal == nil {
		writeError(ctx, ports.ErrJournalNotEnabled)
		return
	}
	capLimit := h.HistoryLimit
	if capLimit <= 0 {
		capLimit = defaultHistoryLimit
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(ctx.Query("limit"))))
	if err != nil || limit <= 0 || limit > capLimit {
		limit = capLimit
	}
	events, err := h.Journal.List(c, limit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if events == nil {
		events = []ports.WeatherEventRecord{}
	}
	ctx.JSON(consts.StatusOK, historyResponse{Events: events})
}

func (h Handler) realtime(c context.Context, ctx *app.RequestContext) {
	resp, err := h.Time.Realtime(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) console(c context.Context, ctx *app.RequestContext) {
	if h.Console == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "console not configured")
		return
	}
	var body consoleRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(body.Line) == "" {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "line is required")
		return
	}
	ctx.JSON(consts.StatusOK, h.Console.Execute(c, body.Line))
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func (h Handler) healthz(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, weathersync.ErrInvalidLocation):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_location", err.Error())
	case errors.Is(err, ports.ErrJournalNotEnabled):
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", err.Error())
	case errors.Is(err, weathersync.ErrClosed),
		errors.Is(err, ports.ErrWorldUnavailable):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
