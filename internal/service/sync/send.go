package sync

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ledgerchat/internal/broadcast"
	"ledgerchat/internal/cryptographic/envelope"
	"ledgerchat/internal/merge"
	"ledgerchat/internal/model"
	"ledgerchat/internal/remote"
	"ledgerchat/internal/utils/log"
)

// Send encrypts text, appends it to the remote ledger, merges the
// confirmed message and announces it to sibling instances. The
// returned error is for a dismissible notice; a send failure is never
// fatal to the session.
func (c *Controller) Send(ctx context.Context, text string, imageRef, replyTo *int64) error {
	author := "anonymous"
	if p := c.ids.LocalProfile(ctx); p != nil && p.Nickname != "" {
		author = p.Nickname
	}

	body, err := c.encryptBody(text)
	if err != nil {
		return err
	}

	msg, err := c.store.SendMessage(ctx, remote.SendRequest{
		Author:         author,
		SenderIdentity: c.clientID,
		Text:           body,
		ImageRef:       imageRef,
		ReplyTo:        replyTo,
	})
	if err != nil {
		return errors.Wrap(err, "send message")
	}

	c.post(func() {
		confirmed := c.openAll([]model.Message{msg})
		c.detector.MarkSeen(confirmed)
		before := len(c.messages)
		c.messages = merge.Merge(c.messages, confirmed)
		if len(c.messages) > before {
			c.totalCount++
		}
		c.cache.Save(c.cfg.Scope, c.snapshot())
		c.publishView()
	})

	if err := c.port.Publish(ctx, broadcast.Event{
		Kind:   broadcast.KindNewMessage,
		Scope:  c.cfg.Scope,
		Sender: c.clientID,
	}); err != nil {
		log.Debug("broadcast publish failed", zap.Error(err))
	}
	return nil
}

// AnnounceProfileUpdate tells sibling instances to re-fetch the local
// display profile after the user edits it.
func (c *Controller) AnnounceProfileUpdate(ctx context.Context) {
	if err := c.port.Publish(ctx, broadcast.Event{
		Kind:   broadcast.KindProfileUpdated,
		Scope:  c.cfg.Scope,
		Sender: c.clientID,
	}); err != nil {
		log.Debug("broadcast publish failed", zap.Error(err))
	}
}

// encryptBody seals text under the group key when the scope is a
// group, else the user key. A missing crypto primitive degrades to
// plaintext rather than failing the send.
func (c *Controller) encryptBody(text string) (string, error) {
	var body string
	var err error
	if c.cfg.GroupID != "" {
		body, err = c.codec.EncryptGroup(c.cfg.GroupID, text)
	} else {
		body, err = c.codec.Encrypt(text)
	}
	if errors.Is(err, envelope.ErrCryptoUnavailable) {
		log.Warn("encryption unavailable, sending plaintext", zap.Error(err))
		return text, nil
	}
	if err != nil {
		return "", err
	}
	return body, nil
}
