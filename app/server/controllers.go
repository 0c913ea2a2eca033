package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"github.com/mahesh-hegde/tilasto/app/dashboard"
	"github.com/mahesh-hegde/tilasto/app/municipality"
	"github.com/mahesh-hegde/tilasto/app/series"
)

const sessionCookie = "tilasto_session"

type TilastoController struct {
	ds       *dashboard.DashboardService
	ms       *municipality.MunicipalityService
	sessions *dashboard.SessionStore
	markdown *MarkdownConverter
	conf     *config.TilastoConfig
}

func NewTilastoController(ds *dashboard.DashboardService, ms *municipality.MunicipalityService, conf *config.TilastoConfig) *TilastoController {
	return &TilastoController{
		ds:       ds,
		ms:       ms,
		sessions: dashboard.NewSessionStore(time.Duration(conf.SessionTTLMinutes) * time.Minute),
		markdown: NewMarkdownConverter(ms),
		conf:     conf,
	}
}

func (h *TilastoController) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.GetHome)

	api := e.Group("/api")
	api.GET("/entities", h.GetEntities)
	api.GET("/entities/:code/summary", h.GetSummary)
	api.GET("/entities/:code/series/:metric", h.GetSeries)
	api.GET("/boundaries", h.GetBoundaries)
	api.POST("/session/actions", h.PostSessionAction)
}

type homePage struct {
	Selected common.Entity
	Metrics  []common.Metric
	Info     template.HTML
}

func (h *TilastoController) infoSource() ([]byte, error) {
	if h.conf.InfoFile == "" {
		return templateFs.ReadFile("template/info.md")
	}
	return os.ReadFile(filepath.Join(h.conf.DataDir, h.conf.InfoFile))
}

func (h *TilastoController) GetHome(c echo.Context) error {
	ctx := c.Request().Context()
	selected := common.WholeCountry
	if code := c.QueryParam("entity"); code != "" {
		e, err := h.ms.Lookup(ctx, code)
		if err != nil {
			return err
		}
		selected = e
	}

	source, err := h.infoSource()
	if err != nil {
		return fmt.Errorf("failed to read info page: %w", err)
	}
	info, err := h.markdown.ConvertToHTML(source)
	if err != nil {
		return fmt.Errorf("failed to render info page: %w", err)
	}
	return c.Render(http.StatusOK, "index", homePage{
		Selected: selected,
		Metrics:  []common.Metric{common.MetricPopulation, common.MetricCrime, common.MetricEmployment},
		Info:     info,
	})
}

func (h *TilastoController) GetEntities(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParam("q")
	if q == "" {
		all, err := h.ms.List(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, municipality.Suggestions{Items: all})
	}

	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		var err error
		if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
			return common.NewUserVisibleError(http.StatusBadRequest, "limit must be a non-negative number")
		}
	}
	suggestions, err := h.ms.Suggest(ctx, q, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (h *TilastoController) GetBoundaries(c echo.Context) error {
	raw, err := h.ms.Boundaries(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, "application/geo+json", raw)
}

func (h *TilastoController) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.ms.Lookup(ctx, c.Param("code"))
	if err != nil {
		return err
	}
	sum, err := h.ds.Summary(ctx, e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *TilastoController) GetSeries(c echo.Context) error {
	ctx := c.Request().Context()
	metric, err := common.ParseMetric(c.Param("metric"))
	if err != nil {
		return err
	}
	mode, err := common.ParseChartMode(c.QueryParam("mode"))
	if err != nil {
		return err
	}
	e, err := h.ms.Lookup(ctx, c.Param("code"))
	if err != nil {
		return err
	}
	ls, err := h.ds.Series(ctx, series.ChartState{Metric: metric, Mode: mode, Entity: e})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ls)
}

func (h *TilastoController) PostSessionAction(c echo.Context) error {
	var id string
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}
	sess := h.sessions.Get(id)
	if sess.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	var action dashboard.Action
	if err := c.Bind(&action); err != nil {
		return common.NewUserVisibleError(http.StatusBadRequest, "malformed action")
	}
	view, err := sess.Apply(c.Request().Context(), h.ds, action)
	if err != nil {
		slog.Debug("session action failed", "session", sess.ID, "kind", action.Kind, "err", err)
		return err
	}
	return c.JSON(http.StatusOK, view)
}
