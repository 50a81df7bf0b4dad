package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/view"
)

// SetupRequest is the local configuration sent by the setup form.
type SetupRequest struct {
	Token    string `form:"token" json:"token" validate:"required"`
	UserID   string `form:"user_id" json:"user_id"`
	UserName string `form:"user_name" json:"user_name"`
}

// HostConfig returns the configuration of the request. The local
// configuration never has a notifier.
func (s SetupRequest) HostConfig() *model.HostConfig {
	cfg := &model.HostConfig{Token: strings.TrimSpace(s.Token)}
	if s.UserID != "" || s.UserName != "" {
		cfg.User = &model.User{ID: s.UserID, Name: s.UserName}
	}
	return cfg
}

// StateResponse is the catalog state.
type StateResponse struct {
	Valid      bool                  `json:"valid"`
	UserName   string                `json:"userName,omitempty"`
	CanNotify  bool                  `json:"canNotify"`
	Mounted    bool                  `json:"mounted"`
	Phase      string                `json:"phase"`
	Loading    bool                  `json:"loading"`
	Refreshing bool                  `json:"refreshing"`
	Error      string                `json:"error,omitempty"`
	UpdatedAt  *time.Time            `json:"updatedAt,omitempty"`
	Data       *model.MetricsPayload `json:"data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	app    App
	logger log.Logger
}

func (h *handler) page(c echo.Context) error {
	var b bytes.Buffer
	if err := h.app.RenderPage(&b); err != nil {
		h.logger.Errorf("could not render page: %s", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not render page"})
	}
	return c.HTMLBlob(http.StatusOK, b.Bytes())
}

func (h *handler) panel(c echo.Context) error {
	if !h.app.Decision().Valid {
		return c.JSON(http.StatusForbidden, errorResponse{Error: view.ErrInvalidConfig.Error()})
	}

	var b bytes.Buffer
	if err := h.app.RenderPanel(&b); err != nil {
		h.logger.Errorf("could not render panel: %s", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not render panel"})
	}
	return c.HTMLBlob(http.StatusOK, b.Bytes())
}

func (h *handler) state(c echo.Context) error {
	d := h.app.Decision()
	resp := StateResponse{
		Valid:     d.Valid,
		UserName:  d.UserName,
		CanNotify: d.CanNotify,
		Phase:     "unmounted",
	}

	if st, ok := h.app.PanelState(); ok {
		resp.Mounted = true
		resp.Phase = st.Phase.String()
		resp.Loading = st.Loading
		resp.Refreshing = st.Refreshing
		resp.Error = st.ErrorMessage()
		resp.Data = st.Data
		if !st.UpdatedAt.IsZero() {
			t := st.UpdatedAt
			resp.UpdatedAt = &t
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) refresh(c echo.Context) error {
	if !h.app.Refresh() {
		return c.JSON(http.StatusConflict, errorResponse{Error: "metrics panel is not mounted"})
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handler) setup(c echo.Context) error {
	var req SetupRequest
	if err := c.Bind(&req); err != nil {
		return h.setupFailed(c, "invalid setup request")
	}
	if err := c.Validate(&req); err != nil {
		return h.setupFailed(c, "token is required")
	}

	h.app.ApplyLocalConfig(req.HostConfig())
	return h.done(c)
}

func (h *handler) setupFailed(c echo.Context, msg string) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
	}
	h.app.SetFormError(msg)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *handler) reset(c echo.Context) error {
	h.app.ClearLocalConfig()
	return h.done(c)
}

func (h *handler) notify(c echo.Context) error {
	err := h.app.Notify(c.Request().Context())
	switch {
	case err == nil:
		return h.done(c)
	case errors.Is(err, view.ErrInvalidConfig):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, view.ErrNoNotifier):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.logger.Errorf("host notification failed: %s", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

// done answers a successful action, forms go back to the page.
func (h *handler) done(c echo.Context) error {
	if wantsJSON(c) {
		return h.state(c)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func wantsJSON(c echo.Context) bool {
	r := c.Request()
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
