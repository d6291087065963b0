package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"ledgerchat/internal/cryptographic/envelope"
	"ledgerchat/internal/identity"
	"ledgerchat/internal/model"
	syncctl "ledgerchat/internal/service/sync"
	"ledgerchat/internal/utils/log"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField
		status  *tview.TextView

		ctrl *syncctl.Controller
		ids  *identity.Service

		scope string
		stop  chan struct{}
	}
)

func NewApp(ctrl *syncctl.Controller, ids *identity.Service, scope string) *App {
	return &App{
		app:   tview.NewApplication(),
		ctrl:  ctrl,
		ids:   ids,
		scope: scope,
		stop:  make(chan struct{}),
	}
}

// Run opens the controller and blocks inside the TUI event loop.
func (c *App) Run(ctx context.Context) {
	c.ctrl.Open(ctx)
	go c.redrawLoop()
	c.renderUI()
}

func (c *App) Stop() {
	close(c.stop)
	c.ctrl.Close()
	c.app.Stop()
}

// blocking function
func (c *App) renderUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", c.scope))

	c.status = tview.NewTextView().SetDynamicColors(true)

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(msg string) {
			if err := c.handleInput(msg); err != nil {
				log.Error("send failed", zap.Error(err))
			}
		}(text)
	})

	// PgUp pages into history (suspending the poll), End returns to
	// the live edge, Esc dismisses the error slot and the oldest
	// pending notification.
	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyPgUp:
			c.ctrl.SetAtLiveEdge(false)
			c.ctrl.LoadOlder()
		case tcell.KeyEnd:
			c.ctrl.SetAtLiveEdge(true)
			c.chatbox.ScrollToEnd()
		case tcell.KeyEsc:
			c.ctrl.DismissError()
			if pending := c.ctrl.Notifications().Pending(); len(pending) > 0 {
				c.ctrl.Notifications().Dismiss(pending[0].MessageID)
			}
		}
		return event
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.status, 1, 0, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

// handleInput routes slash commands, everything else is a send.
func (c *App) handleInput(msg string) error {
	ctx := context.Background()

	if nick, ok := strings.CutPrefix(msg, "/nick "); ok {
		profile := c.ids.LocalProfile(ctx)
		updated := profileOrDefault(profile)
		updated.Nickname = strings.TrimSpace(nick)
		if err := c.ids.UpdateProfile(ctx, updated); err != nil {
			return err
		}
		c.ctrl.AnnounceProfileUpdate(ctx)
		return nil
	}
	if msg == "/refresh" {
		c.ctrl.RefreshNow()
		return nil
	}

	return c.ctrl.Send(ctx, msg, nil, nil)
}

// redrawLoop repaints from the controller's view on a short interval;
// the controller owns all timeline state, the TUI only reads it.
func (c *App) redrawLoop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.redraw()
		}
	}
}

func (c *App) redraw() {
	ctx := context.Background()
	var b strings.Builder

	for _, m := range c.ctrl.Timeline() {
		profile := c.ctrl.DisplayProfile(ctx, m)
		name := profile.Nickname
		if name == "" {
			name = m.Author
		}

		text := m.Text
		if envelope.IsEnvelope(text) {
			text = "[red][cannot decrypt][-]"
		}
		if m.ReplyTo != nil {
			fmt.Fprintf(&b, "[green]%s[-] [gray](re #%d)[-] %s\n", name, *m.ReplyTo, text)
		} else {
			fmt.Fprintf(&b, "[green]%s:[-] %s\n", name, text)
		}
		if m.ImageRef != nil {
			fmt.Fprintf(&b, "  [blue][image #%d][-]\n", *m.ImageRef)
		}
	}

	status := ""
	if c.ctrl.IsBackfilling() {
		status = "[yellow]loading history...[-]"
	}
	if errText := c.ctrl.VisibleError(); errText != "" {
		status = fmt.Sprintf("[red]%s[-] (Esc to dismiss)", errText)
	}
	if pending := c.ctrl.Notifications().Pending(); len(pending) > 0 {
		n := pending[0]
		status = fmt.Sprintf("[orange]%s from %s (#%d)[-]", n.Kind, n.Message.Author, n.MessageID)
	}

	content := b.String()
	c.app.QueueUpdateDraw(func() {
		c.chatbox.SetText(content)
		c.status.SetText(status)
		c.chatbox.ScrollToEnd()
	})
}

func profileOrDefault(p *model.Profile) model.Profile {
	if p != nil {
		return *p
	}
	return model.Profile{}
}
