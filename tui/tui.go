// Package tui is the terminal host for gifsync: it draws the current frame
// with half-block cells next to transport, tempo and sync panels, and maps
// keys and mouse clicks to engine actions.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/DatanoiseTV/gifsync-go/render"
	"github.com/DatanoiseTV/gifsync-go/source"
)

// Actions are the requests the UI makes of the engine loop. Implementations
// must hand them to the goroutine that owns the engine.
type Actions interface {
	LoadFile(path string)
	Reload()
	SetBars(bars float64)
	Snapshot()
}

// Options wires the UI to the rest of the program.
type Options struct {
	Views   *render.Mailbox // latest engine view
	Control source.Control
	Actions Actions
	Source  string        // transport source name
	Peers   func() uint64 // Link peers, nil for other sources
}

// Manager handles the terminal user interface
type Manager struct {
	app  *tview.Application
	opts Options

	pages *tview.Pages

	// Main layout components
	headerBar   *tview.TextView
	frameView   *tview.Box
	statusPanel *tview.Table
	tempoPanel  *tview.TextView
	beatPanel   *tview.TextView
	logPanel    *tview.TextView
	footerBar   *tview.TextView

	// Modal components
	helpModal *tview.Modal
	syncList  *tview.List
	loadForm  *tview.Form

	// view is the last engine view taken from the mailbox. Only the UI
	// goroutine touches it.
	view gifsync.View

	// Update control
	stopUpdate chan struct{}
	stopOnce   sync.Once
}

// New creates the UI. Call Run to show it.
func New(opts Options) *Manager {
	tui := &Manager{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		opts:       opts,
		stopUpdate: make(chan struct{}),
	}

	tui.setupComponents()
	tui.setupLayout()
	tui.setupKeyBindings()

	return tui
}

// setupComponents creates all the UI components
func (tui *Manager) setupComponents() {
	tui.headerBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[white:blue:b] gifsync [::-] [yellow]● " + strings.ToUpper(tui.opts.Source))

	tui.frameView = tview.NewBox().SetBorder(true).SetTitle(" Animation ")
	tui.frameView.SetDrawFunc(tui.drawFrame)
	tui.frameView.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action == tview.MouseRightClick {
			tui.showLoadForm()
			return tview.MouseConsumed, nil
		}
		return action, event
	})

	tui.statusPanel = tview.NewTable().
		SetBorders(false).
		SetSelectable(false, false)
	tui.statusPanel.SetTitle(" Status ").SetBorder(true)

	tui.tempoPanel = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetWrap(false)
	tui.tempoPanel.SetTitle(" Tempo & Sync ").SetBorder(true)

	tui.beatPanel = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetWrap(false)
	tui.beatPanel.SetTitle(" Cycle ").SetBorder(true)

	tui.logPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(500).
		SetChangedFunc(func() {
			tui.logPanel.ScrollToEnd()
		})
	tui.logPanel.SetTitle(" Log Messages ").SetBorder(true)

	tui.footerBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(footerText(tui.follower()))

	tui.helpModal = tview.NewModal().
		SetText("gifsync Controls\n\n" +
			"↑/↓: Adjust BPM (±1.0)\n" +
			"Space: Toggle transport start/stop\n" +
			"B: Choose sync length\n" +
			"[ / ]: Previous/next sync length\n" +
			"O or right-click: Load a GIF\n" +
			"R: Reload the current GIF\n" +
			"S: Save a PNG snapshot\n" +
			"H: Show/hide this help\n" +
			"Q or Esc: Quit application\n\n" +
			"Tempo and transport follow the host when\n" +
			"a Link session or MIDI clock is used").
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			tui.hideModal("help")
		})

	tui.syncList = tview.NewList().ShowSecondaryText(false)
	tui.syncList.SetTitle(" Sync Length ").SetBorder(true)
	for _, o := range gifsync.SyncOptions {
		bars := o.Bars
		tui.syncList.AddItem(o.Label, "", 0, func() {
			tui.opts.Actions.SetBars(bars)
			tui.hideModal("sync")
		})
	}
	tui.syncList.SetDoneFunc(func() { tui.hideModal("sync") })

	tui.loadForm = tview.NewForm().
		AddInputField("GIF file", "", 48, nil, nil).
		AddButton("Load", func() {
			path := strings.TrimSpace(tui.loadForm.GetFormItem(0).(*tview.InputField).GetText())
			if path != "" {
				tui.opts.Actions.LoadFile(path)
			}
			tui.hideModal("load")
		}).
		AddButton("Cancel", func() { tui.hideModal("load") })
	tui.loadForm.SetCancelFunc(func() { tui.hideModal("load") })
	tui.loadForm.SetTitle(" Load Animation ").SetBorder(true)
}

// setupLayout creates the main application layout
func (tui *Manager) setupLayout() {
	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tui.statusPanel, 8, 0, false).
		AddItem(tui.tempoPanel, 7, 0, false).
		AddItem(tui.beatPanel, 0, 1, false)

	topRow := tview.NewFlex().
		AddItem(tui.frameView, 0, 2, false).
		AddItem(side, 36, 0, false)

	mainContent := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 3, false).
		AddItem(tui.logPanel, 0, 1, false)

	fullLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tui.headerBar, 1, 0, false).
		AddItem(mainContent, 0, 1, true).
		AddItem(tui.footerBar, 1, 0, false)

	tui.pages.AddPage("main", fullLayout, true, true)
	tui.pages.AddPage("help", tui.helpModal, true, false)
	tui.pages.AddPage("sync", centered(tui.syncList, 24, len(gifsync.SyncOptions)+2), true, false)
	tui.pages.AddPage("load", centered(tui.loadForm, 64, 7), true, false)

	tui.app.SetRoot(tui.pages, true).EnableMouse(true)
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// setupKeyBindings configures global key handlers
func (tui *Manager) setupKeyBindings() {
	tui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// modal pages get their own keys
		if name, _ := tui.pages.GetFrontPage(); name != "main" {
			if event.Key() == tcell.KeyEscape {
				tui.hideModal(name)
				return nil
			}
			if name == "help" && (event.Rune() == 'h' || event.Rune() == 'H') {
				tui.hideModal(name)
				return nil
			}
			return event
		}

		switch {
		case event.Rune() == 'q' || event.Rune() == 'Q' || event.Key() == tcell.KeyEscape:
			tui.Stop()
			return nil

		case event.Rune() == 'h' || event.Rune() == 'H':
			tui.showModal("help", tui.helpModal)
			return nil

		case event.Key() == tcell.KeyUp:
			tui.adjustTempo(1.0)
			return nil

		case event.Key() == tcell.KeyDown:
			tui.adjustTempo(-1.0)
			return nil

		case event.Rune() == ' ':
			tui.opts.Control.TogglePlaying()
			return nil

		case event.Rune() == 'b' || event.Rune() == 'B':
			tui.showSyncList()
			return nil

		case event.Rune() == '[':
			tui.stepBars(-1)
			return nil

		case event.Rune() == ']':
			tui.stepBars(1)
			return nil

		case event.Rune() == 'o' || event.Rune() == 'O':
			tui.showLoadForm()
			return nil

		case event.Rune() == 'r' || event.Rune() == 'R':
			tui.opts.Actions.Reload()
			return nil

		case event.Rune() == 's' || event.Rune() == 'S':
			tui.opts.Actions.Snapshot()
			return nil
		}

		return event
	})
}

func (tui *Manager) follower() bool {
	return tui.opts.Control != nil && tui.opts.Control.Follower()
}

func (tui *Manager) adjustTempo(delta float64) {
	if tui.follower() {
		return
	}
	tui.opts.Control.SetTempo(tui.opts.Control.Tempo() + delta)
}

func (tui *Manager) currentBars() float64 {
	if tui.view.Bars > 0 {
		return tui.view.Bars
	}
	return gifsync.DefaultBars
}

func (tui *Manager) stepBars(dir int) {
	if bars, ok := StepSync(tui.currentBars(), dir); ok {
		tui.opts.Actions.SetBars(bars)
	}
}

// StepSync returns the menu entry after (dir > 0) or before (dir < 0) bars.
func StepSync(bars float64, dir int) (float64, bool) {
	opts := gifsync.SyncOptions
	if dir > 0 {
		for _, o := range opts {
			if o.Bars > bars && !o.IsSelected(bars) {
				return o.Bars, true
			}
		}
		return 0, false
	}
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i].Bars < bars && !opts[i].IsSelected(bars) {
			return opts[i].Bars, true
		}
	}
	return 0, false
}

func (tui *Manager) showSyncList() {
	bars := tui.currentBars()
	for i, o := range gifsync.SyncOptions {
		text := "  " + o.Label
		if o.IsSelected(bars) {
			text = "✓ " + o.Label
			tui.syncList.SetCurrentItem(i)
		}
		tui.syncList.SetItemText(i, text, "")
	}
	tui.showModal("sync", tui.syncList)
}

func (tui *Manager) showLoadForm() {
	tui.showModal("load", tui.loadForm)
}

func (tui *Manager) showModal(name string, focus tview.Primitive) {
	tui.pages.ShowPage(name)
	tui.pages.SendToFront(name)
	tui.app.SetFocus(focus)
}

func (tui *Manager) hideModal(name string) {
	tui.pages.HidePage(name)
	tui.app.SetFocus(tui.pages)
}

// startUpdateLoop redraws whenever the engine presents a new view. Views
// that arrive while a draw is pending replace each other in the mailbox.
func (tui *Manager) startUpdateLoop() {
	go func() {
		for {
			v, ok := tui.opts.Views.Next()
			if !ok {
				return
			}
			select {
			case <-tui.stopUpdate:
				return
			default:
			}
			tui.app.QueueUpdateDraw(func() {
				tui.view = v
				tui.updateAllPanels()
			})
		}
	}()
}

// updateAllPanels refreshes all UI components
func (tui *Manager) updateAllPanels() {
	v := tui.view
	tui.updateStatusPanel(v)
	tui.updateTempoPanel(v)
	tui.updateBeatPanel(v)
}

// updateStatusPanel refreshes the transport and animation information
func (tui *Manager) updateStatusPanel(v gifsync.View) {
	tui.statusPanel.Clear()
	for row, kv := range statusRows(v, tui.opts.Source, tui.peers(), tui.opts.Views.Drops()) {
		tui.statusPanel.SetCell(row, 0, tview.NewTableCell(kv[0]).SetTextColor(tcell.ColorYellow))
		tui.statusPanel.SetCell(row, 1, tview.NewTableCell(kv[1]))
	}
}

func (tui *Manager) peers() int {
	if tui.opts.Peers == nil {
		return -1
	}
	return int(tui.opts.Peers())
}

const valueWidth = 22

func statusRows(v gifsync.View, sourceName string, peers int, drops uint64) [][2]string {
	transport := "[red]Stopped"
	if v.Playing {
		transport = "[green]Playing"
	}

	frame := "[darkgray]-"
	if v.Frame != nil {
		frame = fmt.Sprintf("[cyan]%d/%d", v.Index+1, v.Sequence.Len())
	}

	rows := [][2]string{
		{"Source:", sourceName},
		{"Transport:", transport},
		{"Frame:", frame},
		{"File:", tview.Escape(runewidth.Truncate(v.Status, valueWidth, "…"))},
	}
	if v.Sequence != nil {
		rows = append(rows, [2]string{"Length:", fmt.Sprintf("%.2fs (%dx%d)", v.Sequence.Total, v.Sequence.Width, v.Sequence.Height)})
	}
	if peers >= 0 {
		rows = append(rows, [2]string{"Link Peers:", fmt.Sprintf("%d", peers)})
	}
	if drops > 0 {
		rows = append(rows, [2]string{"UI Drops:", fmt.Sprintf("[darkgray]%d", drops)})
	}
	return rows
}

// updateTempoPanel shows tempo and sync length
func (tui *Manager) updateTempoPanel(v gifsync.View) {
	tui.tempoPanel.SetText(tempoText(v, tui.follower()))
}

func tempoText(v gifsync.View, follower bool) string {
	label := "[green]Tempo"
	if follower {
		label = "[yellow]Host Tempo"
	}
	text := fmt.Sprintf("%s[white]\n[white::b]%.1f[white::-] BPM\n\n", label, v.Tempo)
	text += fmt.Sprintf("[cyan]Sync:[white] %s  [darkgray](%.2fs)", gifsync.SyncLabel(v.Bars), gifsync.CycleSeconds(v.Tempo, v.Bars))
	return text
}

// updateBeatPanel shows the position inside the sync cycle
func (tui *Manager) updateBeatPanel(v gifsync.View) {
	tui.beatPanel.SetText(beatText(v, 20))
}

func beatText(v gifsync.View, progressWidth int) string {
	beats := gifsync.CycleBeats(v.Bars)
	beat := v.Phase * beats

	text := "\n"
	text += fmt.Sprintf("[cyan]Beat:[white] %.2f / %g\n", beat+1, beats)
	text += fmt.Sprintf("[cyan]Phase:[white] %.3f\n", v.Phase)
	return text + progressBar(v.Phase, progressWidth, v.Playing)
}

func progressBar(phase float64, width int, playing bool) string {
	fill := "[green::]█"
	if !playing {
		fill = "[gray::]█"
	}
	filled := int(phase * float64(width))

	var b strings.Builder
	b.WriteString("\n")
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString(fill)
		} else {
			b.WriteString("[darkgray::]░")
		}
	}
	fmt.Fprintf(&b, "[white::] %5.1f%%", phase*100)
	return b.String()
}

// drawFrame paints the latest frame inside the animation box.
func (tui *Manager) drawFrame(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	ix, iy, iw, ih := x+1, y+1, width-2, height-2
	if iw <= 0 || ih <= 0 {
		return ix, iy, iw, ih
	}
	DrawView(screen, tui.view, ix, iy, iw, ih)
	return ix, iy, iw, ih
}

// DrawView paints v into the given screen area: the frame as half-block
// cells, or the status line centered when there is no frame.
func DrawView(screen tcell.Screen, v gifsync.View, x, y, width, height int) {
	if v.Frame == nil || v.Frame.Image == nil {
		status := v.Status
		if status == "" {
			status = gifsync.StatusPrompt
		}
		tview.Print(screen, tview.Escape(status), x, y+height/2, width, tview.AlignCenter, tcell.ColorWhite)
		return
	}

	g := render.Cells(v.Frame.Image, width, height)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			c := g.At(col, row)
			screen.SetContent(x+col, y+row, c.Rune, nil, c.Style)
		}
	}
}

// LogWriter returns a writer for log output
func (tui *Manager) LogWriter() *LogWriter {
	return &LogWriter{tui: tui}
}

// LogWriter implements io.Writer for log output
type LogWriter struct {
	tui *Manager
}

func (w *LogWriter) Write(p []byte) (n int, err error) {
	timestamp := time.Now().Format("15:04:05")
	message := fmt.Sprintf("[darkgray]%s[white] %s", timestamp, tview.Escape(strings.TrimRight(string(p), "\n")))

	if w.tui.logPanel != nil {
		fmt.Fprintln(w.tui.logPanel, message)
	}
	return len(p), nil
}

// Run starts the TUI application and blocks until it stops
func (tui *Manager) Run() error {
	tui.startUpdateLoop()
	return tui.app.Run()
}

// Stop gracefully shuts down the TUI
func (tui *Manager) Stop() {
	tui.stopOnce.Do(func() {
		close(tui.stopUpdate)
		tui.app.Stop()
	})
}

func footerText(follower bool) string {
	if follower {
		return "[black:white] B Sync [-:-] [black:white] O Load [-:-] [black:white] R Reload [-:-] [black:white] S Snapshot [-:-] [black:white] H Help [-:-] [black:white] Q Quit "
	}
	return "[black:white] ↑/↓ BPM [-:-] [black:white] Space Transport [-:-] [black:white] B Sync [-:-] [black:white] O Load [-:-] [black:white] S Snapshot [-:-] [black:white] H Help [-:-] [black:white] Q Quit "
}
