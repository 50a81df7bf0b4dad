package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/container/grid"
	"github.com/mum4k/termdash/keyboard"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/termbox"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/sparkline"
	"github.com/mum4k/termdash/widgets/text"
	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/service/content"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/view/gate"
	"github.com/catalogmf/catalog/internal/view/page"
	"github.com/catalogmf/catalog/internal/view/poller"
)

const (
	// Slots is the number of series drawn, extra series are ignored.
	Slots          = 3
	redrawInterval = 500 * time.Millisecond
)

// Source is where the preview reads the catalog state from.
type Source interface {
	Decision() gate.Decision
	PanelState() (poller.State, bool)
	RefreshInterval() time.Duration
	OnChange(fn func()) (remove func())
}

// Preview renders the catalog on the terminal.
type Preview struct {
	src    Source
	copy   content.Copy
	logger log.Logger

	mu     sync.Mutex
	header *text.Text
	status *text.Text
	sparks []*sparkline.SparkLine
}

// NewPreview returns a new terminal preview.
func NewPreview(src Source, c content.Copy, logger log.Logger) (*Preview, error) {
	if logger == nil {
		logger = log.Dummy
	}

	header, err := text.New()
	if err != nil {
		return nil, errors.Wrap(err, "could not create header widget")
	}
	status, err := text.New(text.WrapAtWords())
	if err != nil {
		return nil, errors.Wrap(err, "could not create status widget")
	}

	sparks := make([]*sparkline.SparkLine, 0, Slots)
	for i := 0; i < Slots; i++ {
		sl, err := sparkline.New()
		if err != nil {
			return nil, errors.Wrap(err, "could not create sparkline widget")
		}
		sparks = append(sparks, sl)
	}

	return &Preview{
		src:    src,
		copy:   c,
		logger: logger,
		header: header,
		status: status,
		sparks: sparks,
	}, nil
}

// Run draws the preview until the context is done or the user quits with
// `q` or `Esc`.
func (p *Preview) Run(ctx context.Context) error {
	t, err := termbox.New(termbox.ColorMode(terminalapi.ColorMode256))
	if err != nil {
		return errors.Wrap(err, "could not open terminal")
	}
	defer t.Close()

	opts, err := p.layout()
	if err != nil {
		return err
	}
	c, err := container.New(t, opts...)
	if err != nil {
		return errors.Wrap(err, "could not create terminal layout")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	quitter := func(k *terminalapi.Keyboard) {
		if k.Key == keyboard.KeyEsc || k.Key == 'q' || k.Key == 'Q' {
			cancel()
		}
	}

	remove := p.src.OnChange(p.Sync)
	defer remove()
	p.Sync()

	err = termdash.Run(ctx, t, c,
		termdash.KeyboardSubscriber(quitter),
		termdash.RedrawInterval(redrawInterval),
	)
	if err != nil {
		return errors.Wrap(err, "terminal preview failed")
	}
	return nil
}

func (p *Preview) layout() ([]container.Option, error) {
	b := grid.New()
	b.Add(grid.RowHeightPerc(25,
		grid.ColWidthPerc(50, grid.Widget(p.header, container.Border(linestyle.Light))),
		grid.ColWidthPerc(50, grid.Widget(p.status, container.Border(linestyle.Light))),
	))
	for _, sl := range p.sparks {
		b.Add(grid.RowHeightPerc(25, grid.Widget(sl, container.Border(linestyle.Light))))
	}

	opts, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "could not build terminal grid")
	}
	return append([]container.Option{
		container.Border(linestyle.Light),
		container.BorderTitle(" " + p.copy.App.Title + " "),
	}, opts...), nil
}

// Sync redraws the widgets with the current state of the source.
func (p *Preview) Sync() {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.src.Decision()
	if !d.Valid {
		p.write(p.header, p.copy.Tester.Title, cell.ColorYellow)
		p.write(p.status, p.copy.Tester.Description, cell.ColorDefault)
		p.clearSparks()
		return
	}

	hc := p.copy.Header
	p.write(p.header, fmt.Sprintf("%s\n%s: %s\n%s: %s  %s: %s",
		hc.MicrofrontLabel,
		hc.OperatorLabel, d.UserName,
		hc.RemoteLabel, page.RemoteName,
		hc.ModuleLabel, page.ModuleName,
	), cell.ColorWhite)

	st, ok := p.src.PanelState()
	if !ok {
		st = poller.State{Phase: poller.PhaseIdle}
	}
	v := page.NewPanelView(p.copy.Metrics, st, p.src.RefreshInterval())
	p.write(p.status, statusText(v), statusColor(v))

	p.clearSparks()
	if st.Data == nil {
		return
	}
	for i, s := range st.Data.Series {
		if i >= len(p.sparks) {
			break
		}
		levels := Levels(s)
		if len(levels) == 0 {
			continue
		}

		label := s.Label
		if last, ok := s.LastValue(); ok {
			label = fmt.Sprintf("%s (%s: %.1f)", s.Label, v.Copy.LastLabel, last)
		}
		color := Color(s.Label)
		err := p.sparks[i].Add(levels,
			sparkline.Color(color),
			sparkline.Label(label, cell.FgColor(color)),
		)
		if err != nil {
			p.logger.Errorf("could not draw series %s: %s", s.ID, err)
		}
	}
}

func (p *Preview) clearSparks() {
	for _, sl := range p.sparks {
		sl.Clear()
	}
}

func (p *Preview) write(t *text.Text, s string, color cell.Color) {
	err := t.Write(s, text.WriteReplace(), text.WriteCellOpts(cell.FgColor(color)))
	if err != nil {
		p.logger.Errorf("could not write terminal text: %s", err)
	}
}

func statusText(v page.PanelView) string {
	var lines []string
	switch {
	case v.Loading:
		lines = append(lines, v.Copy.Loading)
	case v.Missing:
		lines = append(lines, v.Copy.SeriesMissing)
	default:
		lines = append(lines, v.Copy.Title, v.Description)
	}
	if v.Error != "" {
		lines = append(lines, v.Error)
	}
	return strings.Join(lines, "\n")
}

func statusColor(v page.PanelView) cell.Color {
	if v.Error != "" {
		return cell.ColorYellow
	}
	return cell.ColorDefault
}
