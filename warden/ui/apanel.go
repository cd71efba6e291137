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
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

const fieldWidth = 16

// AuthPanel collects a user name and password when the server asks for
// them.
type AuthPanel struct {
	layout     *views.BoxLayout
	ufield     *views.Text
	pfield     *views.Text
	passactive bool
	username   []rune
	password   []rune

	Panel
}

func NewAuthPanel(app *App, server string) *AuthPanel {
	a := &AuthPanel{}
	a.Panel.Init(app)

	a.username = make([]rune, 0, 128)
	a.password = make([]rune, 0, 128)

	uprompt := views.NewText()
	pprompt := views.NewText()
	uprompt.SetText("Username: ")
	pprompt.SetText("Password: ")
	uprompt.SetStyle(StyleNormal)
	pprompt.SetStyle(StyleNormal)
	a.ufield = views.NewText()
	a.pfield = views.NewText()

	column := func(ws ...views.Widget) *views.BoxLayout {
		b := views.NewBoxLayout(views.Vertical)
		b.SetStyle(StyleNormal)
		b.AddWidget(views.NewSpacer(), 1.0)
		for _, w := range ws {
			b.AddWidget(w, 0.0)
		}
		b.AddWidget(views.NewSpacer(), 1.0)
		return b
	}

	a.layout = views.NewBoxLayout(views.Horizontal)
	a.layout.SetStyle(StyleNormal)
	a.layout.AddWidget(views.NewSpacer(), 1.0)
	a.layout.AddWidget(column(uprompt, pprompt), 0.0)
	a.layout.AddWidget(column(a.ufield, a.pfield), 0.0)
	a.layout.AddWidget(views.NewSpacer(), 1.0)

	a.SetTitle(server)
	a.SetStatus("Authentication Required")
	a.SetKeys([]string{"[ESC] Quit", "[TAB] Next", "[ENTER] Login"})
	a.SetContent(a.layout)

	return a
}

func (a *AuthPanel) ResetFields() {
	a.passactive = false
	a.username = a.username[:0]
	a.password = a.password[:0]
}

func (a *AuthPanel) Draw() {
	a.update()
	a.Panel.Draw()
}

// field returns the rune slice being edited.
func (a *AuthPanel) field() *[]rune {
	if a.passactive {
		return &a.password
	}
	return &a.username
}

func (a *AuthPanel) HandleEvent(ev tcell.Event) bool {
	ek, ok := ev.(*tcell.EventKey)
	if !ok {
		return a.Panel.HandleEvent(ev)
	}
	f := a.field()
	switch ek.Key() {
	case tcell.KeyEsc:
		a.App().Quit()
	case tcell.KeyTab, tcell.KeyEnter:
		if a.passactive {
			a.App().SetUserPassword(string(a.username),
				string(a.password))
			a.App().ShowMain()
		} else {
			a.passactive = true
		}
	case tcell.KeyBacktab:
		a.passactive = false
	case tcell.KeyCtrlU, tcell.KeyCtrlW:
		*f = (*f)[:0]
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(*f) > 0 {
			*f = (*f)[:len(*f)-1]
		}
	case tcell.KeyRune:
		if len(*f) < 256 {
			*f = append(*f, ek.Rune())
		}
	default:
		return false
	}
	return true
}

// fit pads or trims the prompt to the field width, marking a trimmed
// start with '<'.
func fit(prompt []rune) string {
	if len(prompt) > fieldWidth {
		prompt = append([]rune{'<'}, prompt[len(prompt)-fieldWidth+1:]...)
	}
	return string(prompt) + strings.Repeat(" ", fieldWidth-len(prompt))
}

// update runs on the application goroutine.
func (a *AuthPanel) update() {

	a.Panel.SetError()

	userprompt := append([]rune{}, a.username...)
	passprompt := []rune(strings.Repeat("*", len(a.password)))
	if a.passactive {
		passprompt = append(passprompt, '_')
	} else {
		userprompt = append(userprompt, '_')
	}
	a.ufield.SetText(fit(userprompt))
	a.pfield.SetText(fit(passprompt))

	focus := tcell.StyleDefault.
		Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)

	if a.passactive {
		a.pfield.SetStyle(focus)
		a.ufield.SetStyle(StyleNormal)
	} else {
		a.ufield.SetStyle(focus)
		a.pfield.SetStyle(StyleNormal)
	}
}
