package api

import (
	"net/http"
	"sort"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
	"SignalDeck/internal/engine"
	xhttp "SignalDeck/pkg/http"
	xlogger "SignalDeck/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsHandler exposes the per-source cache state over HTTP. It reads the
// engines directly; no request ever blocks on the durable store.
type SignalsHandler struct {
	logger  *xlogger.Logger
	engines map[string]*engine.Engine
}

func NewSignalsHandler(logger *xlogger.Logger, engines map[string]*engine.Engine) *SignalsHandler {
	return &SignalsHandler{logger: logger, engines: engines}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/signals")
	g.GET("", h.Sources)
	g.GET("/:source/active", h.Active)
	g.GET("/:source/latest", h.Latest)
	g.GET("/:source/latest/:instrument", h.LatestOne)
	g.GET("/:source/history", h.History)
}

func (h *SignalsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Sources lists the configured source tags and their trading dates.
func (h *SignalsHandler) Sources(c echo.Context) error {
	type sourceInfo struct {
		Source      string `json:"source"`
		TradingDate string `json:"tradingDate"`
		Active      int    `json:"active"`
	}
	out := make([]sourceInfo, 0, len(h.engines))
	for _, eng := range h.engines {
		out = append(out, sourceInfo{
			Source:      eng.Source(),
			TradingDate: eng.TradingDate(),
			Active:      len(eng.ActiveSnapshot()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return xhttp.SuccessResponse(c, out)
}

func (h *SignalsHandler) Active(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	rows := sortedRecords(eng.ActiveSnapshot())
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsHandler) Latest(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	rows := sortedRecords(eng.LatestAll())
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsHandler) LatestOne(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	instrument := c.Param("instrument")
	rec, ok := eng.Latest(instrument)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no signal for instrument %q", instrument))
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *SignalsHandler) History(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	req := &struct {
		Limit int `query:"limit" default:"100" validate:"min=1,max=10000"`
	}{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows := sortedRecords(eng.History())
	total := int64(len(rows))
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *SignalsHandler) engineFor(c echo.Context) (*engine.Engine, error) {
	source := c.Param("source")
	eng, ok := h.engines[source]
	if !ok {
		return nil, xhttp.NotFoundErrorf("unknown signal source %q", source)
	}
	return eng, nil
}

// sortedRecords flattens a snapshot newest-first for display.
func sortedRecords(snap repository.Snapshot) []*models.SignalRecord {
	rows := make([]*models.SignalRecord, 0, len(snap))
	for _, rec := range snap {
		rows = append(rows, rec)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AcceptedAt != rows[j].AcceptedAt {
			return rows[i].AcceptedAt > rows[j].AcceptedAt
		}
		return rows[i].Instrument < rows[j].Instrument
	})
	return rows
}
