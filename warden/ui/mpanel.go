// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/warden"
	"github.com/gdamore/warden/rest"
	"github.com/gdamore/warden/warden/util"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
)

func workerStyle(status string) tcell.Style {
	switch status {
	case "running":
		return StyleGood
	case "failed", "dead":
		return StyleError
	case "waiting", "stopped":
		return StyleWarn
	}
	return StyleNormal
}

// MainPanel implements a Widget as a Panel, but provides the data
// model and handling for the content area, using data loaded from a
// wardend REST API service.
type MainPanel struct {
	server   string
	content  *views.CellView
	selected *warden.WorkerInfo
	armed    bool // shutdown requested once, awaiting confirmation
	nrunning int
	nfailed  int
	nidle    int
	width    int
	height   int
	curx     int
	cury     int
	lines    []string
	styles   []tcell.Style
	items    []*warden.WorkerInfo

	Panel
}

// mainModel provides the model for a CellArea.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App, server string) *MainPanel {
	m := &MainPanel{server: server}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetTitle(server)
	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	ek, isKey := ev.(*tcell.EventKey)
	if !isKey {
		return m.Panel.HandleEvent(ev)
	}
	if m.armed {
		m.armed = false
		if ek.Key() == tcell.KeyRune && (ek.Rune() == 'S' || ek.Rune() == 's') {
			m.App().Shutdown()
			return true
		}
	}
	switch ek.Key() {
	case tcell.KeyEsc:
		m.unselect()
		return true
	case tcell.KeyF1:
		m.App().ShowHelp()
		return true
	case tcell.KeyEnter:
		if m.selected != nil {
			m.App().ShowInfo(m.selected.Name)
			return true
		}
	case tcell.KeyRune:
		switch ek.Rune() {
		case 'Q', 'q':
			m.App().Quit()
			return true
		case 'H', 'h':
			m.App().ShowHelp()
			return true
		case 'I', 'i':
			if m.selected != nil {
				m.App().ShowInfo(m.selected.Name)
				return true
			}
		case 'L', 'l':
			if m.selected != nil {
				m.App().ShowLog(m.selected.Name)
			} else {
				m.App().ShowLog("")
			}
			return true
		case 'R', 'r':
			m.App().Reload()
			return true
		case 'S', 's':
			m.armed = true
			return true
		}
	}
	return m.Panel.HandleEvent(ev)
}

// Model items
func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	var ch rune
	var style tcell.Style

	m := model.m

	if y < 0 || y >= len(m.lines) {
		return ch, StyleNormal, nil, 1
	}

	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	} else {
		ch = ' '
	}
	style = m.styles[y]
	if m.items[y] == m.selected {
		style = style.Reverse(true)
	}
	return ch, style, nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	// This assumes that all content is displayable runes of width 1.
	m := model.m
	y := len(m.lines)
	x := 0
	for _, l := range m.lines {
		if x < len(l) {
			x = len(l)
		}
	}
	return x, y
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	m := model.m
	return m.curx, m.cury, true, false
}

func (model *mainModel) MoveCursor(offx, offy int) {

	m := model.m
	m.curx += offx
	m.cury += offy
	m.updateCursor(true)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	m.curx = x
	m.cury = y
	m.updateCursor(true)
}

func (m *MainPanel) unselect() {
	m.cury = 0
	m.curx = 0
	m.updateCursor(false)
}

func (m *MainPanel) updateCursor(selected bool) {
	if m.curx > m.width-1 {
		m.curx = m.width - 1
	}
	if m.cury > m.height-1 {
		m.cury = m.height - 1
	}
	if m.curx < 0 {
		m.curx = 0
	}
	if m.cury < 0 {
		m.cury = 0
	}
	if selected && m.height > 0 {
		if m.selected == nil {
			m.curx = 0
			m.cury = 0
		}
		m.selected = m.items[m.cury]
	} else {
		m.selected = nil
	}
}

// update is called to update content, e.g. in response to Draw() or
// as part of another update.  It runs on the application goroutine.
func (m *MainPanel) update() {

	items, sup, err := m.App().GetItems()
	m.items = items

	// preserve selected item
	if sel := m.selected; sel != nil {
		m.selected = nil
		for y, item := range m.items {
			if item.Name == sel.Name {
				m.selected = item
				m.cury = y
			}
		}
	}
	if err != nil {
		if e, ok := err.(*rest.Error); ok && e.Code == 401 {
			// Switching panels in the middle of a draw is unsafe.
			m.App().app.PostFunc(m.App().ShowAuth)
			return
		}
		m.SetError()
		m.SetStatus(fmt.Sprintf("Cannot load workers: %v", err))
		m.lines = []string{}
		m.styles = []tcell.Style{}
		m.height = 0
		return
	}

	lines := make([]string, 0, len(m.items))
	styles := make([]tcell.Style, 0, len(m.items))

	m.nrunning = 0
	m.nfailed = 0
	m.nidle = 0

	m.height = 0
	m.width = 0

	for _, info := range items {
		status := util.Status(info)
		line := fmt.Sprintf("%-20s %-8s %10s %8d   %s",
			info.Name, status, util.FormatDuration(util.Uptime(info)),
			info.Restarts, info.Status)

		if len(line) > m.width {
			m.width = len(line)
		}
		m.height++

		lines = append(lines, line)
		styles = append(styles, workerStyle(status))
		switch status {
		case "running":
			m.nrunning++
		case "failed", "dead":
			m.nfailed++
		default:
			m.nidle++
		}
	}

	m.lines = lines
	m.styles = styles

	title := m.server
	phase := "connecting"
	if sup != nil {
		title = fmt.Sprintf("%s (%s)", m.server, sup.Name)
		phase = sup.Phase
	}
	m.SetTitle(title)

	if m.armed {
		m.SetWarn()
		m.SetStatus("Press S again to shut down the supervisor")
	} else {
		m.SetStatus(fmt.Sprintf(
			"%6d Workers %6d Running %6d Failed %6d Idle   Supervisor %s",
			len(m.items), m.nrunning, m.nfailed, m.nidle, phase))
		if m.nfailed > 0 {
			m.SetError()
		} else if m.nidle > 0 {
			m.SetWarn()
		} else if m.nrunning > 0 {
			m.SetGood()
		} else {
			m.SetNormal()
		}
	}

	words := []string{"[Q] Quit", "[H] Help", "[L] Log", "[R] Reload",
		"[S] Shutdown"}
	if m.selected != nil {
		words = append(words, "[I] Info")
	}
	m.SetKeys(words)
}
