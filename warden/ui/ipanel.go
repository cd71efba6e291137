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
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/warden/warden/util"
)

// InfoPanel shows everything known about one worker.
type InfoPanel struct {
	text *views.TextArea
	name string // worker name

	Panel
}

func NewInfoPanel(app *App) *InfoPanel {
	i := &InfoPanel{}
	i.Panel.Init(app)

	i.text = views.NewTextArea()
	i.text.EnableCursor(false)
	i.text.SetStyle(StyleNormal)
	i.SetContent(i.text)
	i.SetKeys([]string{"[ESC] Main", "[H] Help", "[L] Log"})

	return i
}

func (i *InfoPanel) Draw() {
	i.update()
	i.Panel.Draw()
}

func (i *InfoPanel) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			i.app.ShowMain()
			return true
		case tcell.KeyF1:
			i.app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				i.app.ShowMain()
				return true
			case 'H', 'h':
				i.app.ShowHelp()
				return true
			case 'L', 'l':
				i.app.ShowLog(i.name)
				return true
			}
		}
	}
	return i.Panel.HandleEvent(ev)
}

func (i *InfoPanel) SetName(name string) {
	i.name = name
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%v (%s ago)", t.Format(time.Stamp),
		util.FormatDuration(time.Since(t)))
}

// update runs on the application goroutine.
func (i *InfoPanel) update() {

	w, err := i.app.GetItem(i.name)
	i.SetTitle("Details for " + i.name)

	if w == nil {
		i.SetStatus(fmt.Sprintf("No data: %v", err))
		i.SetError()
		i.text.SetLines(nil)
		return
	}

	status := util.Status(w)
	i.SetStatus(status)
	i.SetHealth(status)

	field := func(label string, v interface{}) string {
		return fmt.Sprintf("%13s %v", label+":", v)
	}
	lines := []string{
		field("Name", w.Name),
		field("Instance", w.Id),
		field("Status", status),
		field("Detail", w.Status),
		field("Changed", since(w.TimeStamp)),
		field("Started", since(w.Started)),
		field("Uptime", util.FormatDuration(util.Uptime(w))),
		field("Stoppable", w.Stoppable),
		field("Starts", w.Starts),
		field("Failures", w.Failures),
		field("Restarts", w.Restarts),
	}
	if w.LastError != "" {
		lines = append(lines, field("Last error", w.LastError))
	}
	if w.ExitError != "" {
		lines = append(lines, field("Last exit", w.ExitError))
	}
	i.text.SetLines(lines)
}
