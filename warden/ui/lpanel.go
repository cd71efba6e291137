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

// LogPanel shows the log of one worker, or the consolidated log of the
// supervisor when no worker is named.
type LogPanel struct {
	text *views.TextArea
	name string // worker name

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)
	p.SetKeys([]string{"[ESC] Main", "[H] Help"})

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	app := p.app
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			app.ShowMain()
			return true
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.ShowMain()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'I', 'i':
				if p.name != "" {
					app.ShowInfo(p.name)
					return true
				}
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

func (p *LogPanel) SetName(name string) {
	p.SetTitle("Loading")
	p.text.SetLines(nil)
	p.name = name
}

// update runs on the application goroutine.
func (p *LogPanel) update() {

	words := []string{"[ESC] Main", "[H] Help"}
	if p.name == "" {
		p.SetTitle("Consolidated Log")
	} else {
		p.SetTitle("Log for " + p.name)
		words = append(words, "[I] Info")
	}
	p.SetKeys(words)

	loginfo, err := p.app.GetLog(p.name)
	if loginfo == nil {
		if err != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", err))
			p.SetError()
		} else {
			p.SetStatus("Loading ...")
			p.SetNormal()
		}
		p.text.SetLines([]string{""})
		return
	}

	p.SetStatus(fmt.Sprintf("%d records", len(loginfo.Records)))
	p.SetNormal()
	if p.name != "" {
		if w, e := p.app.GetItem(p.name); e == nil {
			status := util.Status(w)
			p.SetStatus(fmt.Sprintf("%d records   %s",
				len(loginfo.Records), status))
			p.SetHealth(status)
		}
	}

	lines := make([]string, 0, len(loginfo.Records))
	for _, r := range loginfo.Records {
		stamp := r.Time.Format(time.StampMilli)
		if p.name == "" && r.Source != "" {
			lines = append(lines, fmt.Sprintf("%s [%s] %s",
				stamp, r.Source, r.Text))
		} else {
			lines = append(lines, stamp+" "+r.Text)
		}
	}
	p.text.SetLines(lines)
}
