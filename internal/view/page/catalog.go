package page

import (
	"math"
	"strconv"
	"time"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/content"
	"github.com/catalogmf/catalog/internal/view/gate"
	"github.com/catalogmf/catalog/internal/view/page/widget"
	"github.com/catalogmf/catalog/internal/view/poller"
)

// Remote metadata shown on the header badges.
const (
	RemoteName = "catalog"
	ModuleName = "App"
)

// View is the whole document. Only one of Setup or Catalog is set.
type View struct {
	Title   string
	Setup   *SetupView
	Catalog *CatalogView
}

// SetupView is the form shown when the host configuration is not valid.
type SetupView struct {
	Copy     content.TesterCopy
	Token    string
	UserID   string
	UserName string
	// Error is the validation error of the last applied form.
	Error string
	// HasLocal is true when a local override is in place and can be reset.
	HasLocal bool
}

// HeaderView is the catalog header.
type HeaderView struct {
	Copy      content.HeaderCopy
	UserName  string
	Remote    string
	Module    string
	CanNotify bool
}

// PanelView is the live metrics panel.
type PanelView struct {
	Copy        content.MetricsCopy
	Description string
	// Loading shows the skeleton, only on the first fetch.
	Loading bool
	Error   string
	// Missing is set when there is nothing to show, neither data nor error.
	Missing bool
	Series  []widget.Sparkline
}

// ProductView is one card of the product grid.
type ProductView struct {
	Name     string
	Category string
	Price    string
	Stock    int
	InStock  bool
}

// CatalogView is the view rendered with a valid configuration.
type CatalogView struct {
	Copy         content.CatalogCopy
	Header       HeaderView
	Panel        PanelView
	ShowProducts bool
	Products     []ProductView
}

// NewSetupView returns the setup view prefilled with the configuration in use.
func NewSetupView(c content.Copy, cfg *model.HostConfig, hasLocal bool, formErr string) *SetupView {
	v := &SetupView{
		Copy:     c.Tester,
		Error:    formErr,
		HasLocal: hasLocal,
	}
	if cfg != nil {
		v.Token = cfg.Token
		if cfg.User != nil {
			v.UserID = cfg.User.ID
			v.UserName = cfg.User.Name
		}
	}
	return v
}

// NewHeaderView returns the header for a valid decision.
func NewHeaderView(c content.Copy, d gate.Decision) HeaderView {
	return HeaderView{
		Copy:      c.Header,
		UserName:  d.UserName,
		Remote:    RemoteName,
		Module:    ModuleName,
		CanNotify: d.CanNotify,
	}
}

// NewPanelView maps the poller state to the panel.
func NewPanelView(c content.MetricsCopy, st poller.State, interval time.Duration) PanelView {
	v := PanelView{
		Copy:        c,
		Description: content.Format(c.Description, map[string]string{"seconds": Seconds(interval)}),
		Error:       st.ErrorMessage(),
	}

	// Nothing fetched yet.
	if st.Data == nil && st.Err == nil && (st.Loading || st.Phase == poller.PhaseIdle || st.Phase == poller.PhaseLoading) {
		v.Loading = true
		return v
	}

	if st.Data != nil {
		v.Series = widget.NewSparklines(st.Data.Series, c.LastLabel)
	}
	v.Missing = v.Error == "" && len(v.Series) == 0

	return v
}

// Seconds formats the interval as whole seconds.
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(math.Round(d.Seconds()), 'f', -1, 64)
}

// NewProductViews returns the product cards.
func NewProductViews(ps []model.Product) []ProductView {
	pvs := make([]ProductView, 0, len(ps))
	for _, p := range ps {
		pvs = append(pvs, ProductView{
			Name:     p.Name,
			Category: p.Category,
			Price:    strconv.FormatFloat(p.Price, 'f', 2, 64),
			Stock:    p.Stock,
			InStock:  p.Stock > 0,
		})
	}
	return pvs
}
