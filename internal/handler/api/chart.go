package api

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	models "CandleScope/internal/domain/models"
	domrepo "CandleScope/internal/domain/repository"
	"CandleScope/internal/indicator"
	"CandleScope/internal/usecase"
	xhttp "CandleScope/pkg/http"
	xlogger "CandleScope/pkg/logger"
)

// ChartHandler exposes the chart API: candle pages, chart sessions with
// their indicator sets, replay controls and computed frames.
type ChartHandler struct {
	logger   *xlogger.Logger
	candles  *usecase.CandlesUseCase
	sessions *usecase.SessionManager
}

func NewChartHandler(logger *xlogger.Logger, candles *usecase.CandlesUseCase, sessions *usecase.SessionManager) *ChartHandler {
	return &ChartHandler{logger: logger, candles: candles, sessions: sessions}
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candles", h.Candles)
	g.GET("/indicators", h.Catalog)

	g.POST("/sessions", h.CreateSession)
	g.DELETE("/sessions/:id", h.CloseSession)
	g.GET("/sessions/:id/frame", h.Frame)

	g.GET("/sessions/:id/indicators", h.ListIndicators)
	g.POST("/sessions/:id/indicators", h.AddIndicator)
	g.PATCH("/sessions/:id/indicators/:instance", h.UpdateIndicator)
	g.DELETE("/sessions/:id/indicators/:instance", h.RemoveIndicator)

	g.POST("/sessions/:id/replay", h.ReplayToggle)
	g.POST("/sessions/:id/replay/play", h.ReplayPlay)
	g.POST("/sessions/:id/replay/pause", h.ReplayPause)
	g.POST("/sessions/:id/replay/seek", h.ReplaySeek)
	g.POST("/sessions/:id/replay/speed", h.ReplaySpeed)
	g.POST("/sessions/:id/replay/step", h.ReplayStep)
	g.POST("/sessions/:id/replay/animate", h.ReplayAnimate)
}

func (h *ChartHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	page, err := h.candles.Page(c.Request().Context(), req.Symbol, tf, req.Cursor, req.Limit)
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, page)
}

// Catalog lists the registered indicator definitions so clients can render
// configuration dialogs without hardcoding parameter sets.
func (h *ChartHandler) Catalog(c echo.Context) error {
	return xhttp.SuccessResponse(c, indicator.Definitions())
}

func (h *ChartHandler) CreateSession(c echo.Context) error {
	req := &models.CreateSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	sess, err := h.sessions.Create(c.Request().Context(), strings.ToUpper(req.Symbol), tf, req.AutoRefresh, req.Limit)
	if err != nil {
		h.logger.Error("create session error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, sess)
}

func (h *ChartHandler) CloseSession(c echo.Context) error {
	h.sessions.Close(c.Param("id"))
	return xhttp.NoContentResponse(c)
}

func (h *ChartHandler) Frame(c echo.Context) error {
	frame, err := h.sessions.Frame(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartHandler) ListIndicators(c echo.Context) error {
	instances, err := h.sessions.Indicators(c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, instances)
}

func (h *ChartHandler) AddIndicator(c echo.Context) error {
	req := &models.AddIndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	inst, err := h.sessions.AddIndicator(c.Param("id"), req.IndicatorID, indicator.Config(req.Config), req.Label)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.CreatedResponse(c, inst)
}

func (h *ChartHandler) UpdateIndicator(c echo.Context) error {
	req := &models.UpdateIndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	inst, err := h.sessions.UpdateIndicator(c.Param("id"), c.Param("instance"), indicator.Config(req.Config), req.Visible, req.Label)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, inst)
}

func (h *ChartHandler) RemoveIndicator(c echo.Context) error {
	if err := h.sessions.RemoveIndicator(c.Param("id"), c.Param("instance")); err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *ChartHandler) ReplayToggle(c echo.Context) error {
	req := &models.ReplayToggleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.sessions.SetReplay(c.Param("id"), req.Enabled)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplayPlay(c echo.Context) error {
	state, err := h.sessions.Play(c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplayPause(c echo.Context) error {
	state, err := h.sessions.Pause(c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplaySeek(c echo.Context) error {
	req := &models.ReplaySeekRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.sessions.Seek(c.Param("id"), req.Step)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplaySpeed(c echo.Context) error {
	req := &models.ReplaySpeedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.sessions.SetSpeed(c.Param("id"), req.Speed)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplayStep(c echo.Context) error {
	req := &models.ReplayStepRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.sessions.StepBy(c.Param("id"), req.Delta)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) ReplayAnimate(c echo.Context) error {
	req := &models.ReplayAnimateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.sessions.SetAnimate(c.Param("id"), req.Animate)
	if err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		return xhttp.NotFoundResponse(c, err.Error())
	case errors.Is(err, indicator.ErrUnknownIndicator), errors.Is(err, usecase.ErrSessionLimit):
		return xhttp.BadRequestResponse(c, err.Error())
	}
	h.logger.Error("session usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
