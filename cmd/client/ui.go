package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"otr_messaging/internal/model"
	"otr_messaging/internal/service/otr"
	"otr_messaging/internal/utils/log"
)

type chatUI struct {
	app     *tview.Application
	chatbox *tview.TextView
	input   *tview.InputField

	client *otr.App
	topic  model.TopicID

	// sender name cache, only touched from the event listener
	names map[model.UserID]string
}

func newChatUI(client *otr.App, topic model.TopicID) *chatUI {
	return &chatUI{
		app:    tview.NewApplication(),
		client: client,
		topic:  topic,
		names:  map[model.UserID]string{},
	}
}

// blocking function
func (c *chatUI) Run() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Topic %s ", c.topic))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message (/share <path> to attach a file) ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}
			c.input.SetText("")

			go c.submit(text)
		}
	})

	c.client.Listen(c.onEvents)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init ui", zap.Error(err))
	}
}

func (c *chatUI) submit(text string) {
	ctx := context.Background()

	if path, ok := strings.CutPrefix(text, "/share "); ok {
		if err := c.shareFile(ctx, strings.TrimSpace(path)); err != nil {
			c.app.Suspend(func() {
				log.Error("share asset failed", zap.Error(err))
			})
		}
		return
	}

	if _, err := c.client.SendText(ctx, c.topic, text); err != nil {
		c.app.Suspend(func() {
			log.Error("send message failed", zap.Error(err))
		})
	}
}

func (c *chatUI) shareFile(ctx context.Context, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	_, err = c.client.ShareAsset(ctx, c.topic, payload, model.AssetMetadata{
		FileName:      filepath.Base(path),
		Length:        int64(len(payload)),
		FileExtension: strings.TrimPrefix(filepath.Ext(path), "."),
	})
	return err
}

// onEvents runs on the sync engine's goroutine, never on the ui loop.
func (c *chatUI) onEvents(events []model.StoredEvent) {
	lines := make([]string, 0, len(events))
	for _, event := range events {
		if event.Message.TopicID != c.topic {
			continue
		}
		lines = append(lines, c.renderEvent(&event))
	}
	if len(lines) == 0 {
		return
	}

	c.app.QueueUpdateDraw(func() {
		for _, line := range lines {
			fmt.Fprintln(c.chatbox, line)
		}
		c.chatbox.ScrollToEnd()
	})
}

func (c *chatUI) renderEvent(event *model.StoredEvent) string {
	name := c.senderName(event.SendingUser)

	switch event.Type {
	case model.MessageTypeText:
		return fmt.Sprintf("[yellow]%s:[-] %s", name, event.Message.Text.Text)
	case model.MessageTypeAsset:
		return fmt.Sprintf("[yellow]%s:[-] [green]shared %s (%s)[-]",
			name, event.Message.Asset.Metadata.FileName, event.Message.Asset.AssetID)
	default:
		return fmt.Sprintf("[yellow]%s:[-] [red]unsupported message[-]", name)
	}
}

func (c *chatUI) senderName(userID model.UserID) string {
	if userID == c.client.GetSelf().UserID {
		return "You"
	}
	if name, ok := c.names[userID]; ok {
		return name
	}

	detail, err := c.client.GetUser(context.Background(), userID)
	if err != nil || detail == nil {
		return string(userID)
	}
	c.names[userID] = detail.Name
	return detail.Name
}
