package api

import (
	"context"

	"github.com/pkg/errors"
	null "gopkg.in/guregu/null.v3"

	"minigram/core/exec"
	"minigram/core/update"
)

// Chat actions accepted by SendChatAction.
const (
	ActionTyping          = "typing"
	ActionUploadPhoto     = "upload_photo"
	ActionRecordVideo     = "record_video"
	ActionUploadVideo     = "upload_video"
	ActionRecordVoice     = "record_voice"
	ActionUploadVoice     = "upload_voice"
	ActionUploadDocument  = "upload_document"
	ActionChooseSticker   = "choose_sticker"
	ActionFindLocation    = "find_location"
	ActionRecordVideoNote = "record_video_note"
	ActionUploadVideoNote = "upload_video_note"
)

// UpdatesOptions are the getUpdates parameters.
type UpdatesOptions struct {
	// Offset is omitted when not set.
	Offset null.Int
	// Timeout is the server-side long-poll timeout in seconds.
	Timeout int
	// Limit is omitted when zero.
	Limit          int
	AllowedUpdates []update.Kind
}

func (o UpdatesOptions) body() map[string]interface{} {
	body := map[string]interface{}{
		"timeout":         o.Timeout,
		"allowed_updates": update.Strings(o.AllowedUpdates),
	}

	if o.Offset.Valid {
		body["offset"] = o.Offset.Int64
	}

	if o.Limit > 0 {
		body["limit"] = o.Limit
	}

	return body
}

func (c *Client) getUpdates(options UpdatesOptions) exec.Op[[]interface{}] {
	return func(ctx context.Context, mode exec.Mode) ([]interface{}, error) {
		resp, err := c.checked("getUpdates", options.body())(ctx, mode)
		if err != nil {
			return nil, err
		}

		switch result := resp.Result().(type) {
		case []interface{}:
			return result, nil
		case nil:
			return nil, nil
		default:
			return nil, errors.Errorf("getUpdates: expected list result, got %T", result)
		}
	}
}

// GetUpdates fetches a batch of raw updates. A client-side read timeout yields an empty batch.
func (c *Client) GetUpdates(ctx context.Context, options UpdatesOptions) ([]interface{}, error) {
	return exec.Run(ctx, c.getUpdates(options))
}

func (c *Client) GetUpdatesAsync(ctx context.Context, options UpdatesOptions) *exec.Task[[]interface{}] {
	return exec.Go(ctx, c.getUpdates(options))
}

func (c *Client) GetMe(ctx context.Context) (Response, error) {
	return exec.Run(ctx, c.checked("getMe", nil))
}

func (c *Client) GetMeAsync(ctx context.Context) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("getMe", nil))
}

func sendMessage(chatID int64, text string, parseMode string, params Params) map[string]interface{} {
	if parseMode == "" {
		parseMode = ParseModeHTML
	}

	return params.apply(map[string]interface{}{
		"chat_id":    chatID,
		"text":       clamp(text),
		"parse_mode": parseMode,
	})
}

// SendText sends a text message. Parse mode defaults to HTML.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, params Params) (Response, error) {
	return exec.Run(ctx, c.checked("sendMessage", sendMessage(chatID, text, "", params)))
}

func (c *Client) SendTextAsync(ctx context.Context, chatID int64, text string, params Params) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("sendMessage", sendMessage(chatID, text, "", params)))
}

func (c *Client) reply(u *update.Update, reply *Reply) exec.Op[Response] {
	return func(ctx context.Context, mode exec.Mode) (Response, error) {
		if !u.ChatID.Valid {
			return nil, errors.Errorf("reply to %s update %d: no chat", u.Kind, u.ID)
		}

		body := sendMessage(u.ChatID.Int64, reply.Text, reply.ParseMode, nil)
		if u.MessageID.Valid {
			body["reply_to_message_id"] = u.MessageID.Int64
		}

		return c.checked("sendMessage", reply.Params.apply(body))(ctx, mode)
	}
}

// Reply sends the reply to the chat of the update, quoting the originating message.
func (c *Client) Reply(ctx context.Context, u *update.Update, reply *Reply) (Response, error) {
	return exec.Run(ctx, c.reply(u, reply))
}

func (c *Client) ReplyAsync(ctx context.Context, u *update.Update, reply *Reply) *exec.Task[Response] {
	return exec.Go(ctx, c.reply(u, reply))
}

func chatAction(chatID int64, action string) map[string]interface{} {
	return map[string]interface{}{
		"chat_id": chatID,
		"action":  action,
	}
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) (Response, error) {
	return exec.Run(ctx, c.checked("sendChatAction", chatAction(chatID, action)))
}

func (c *Client) SendChatActionAsync(ctx context.Context, chatID int64, action string) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("sendChatAction", chatAction(chatID, action)))
}

func messageReaction(chatID, messageID int64, emoji string, big bool) map[string]interface{} {
	return map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"reaction": []interface{}{
			map[string]interface{}{"type": "emoji", "emoji": emoji},
		},
		"is_big": big,
	}
}

// SetMessageReaction sets an emoji reaction on a message.
func (c *Client) SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string, big bool) (Response, error) {
	return exec.Run(ctx, c.checked("setMessageReaction", messageReaction(chatID, messageID, emoji, big)))
}

func (c *Client) SetMessageReactionAsync(ctx context.Context, chatID, messageID int64, emoji string, big bool) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("setMessageReaction", messageReaction(chatID, messageID, emoji, big)))
}

// WebhookOptions are the setWebhook parameters.
type WebhookOptions struct {
	URL            string
	SecretToken    string
	AllowedUpdates []update.Kind
	DropPending    bool
}

func (o WebhookOptions) body() map[string]interface{} {
	body := map[string]interface{}{"url": o.URL}
	if o.SecretToken != "" {
		body["secret_token"] = o.SecretToken
	}

	if len(o.AllowedUpdates) > 0 {
		body["allowed_updates"] = update.Strings(o.AllowedUpdates)
	}

	if o.DropPending {
		body["drop_pending_updates"] = true
	}

	return body
}

func (c *Client) SetWebhook(ctx context.Context, options WebhookOptions) (Response, error) {
	return exec.Run(ctx, c.checked("setWebhook", options.body()))
}

func (c *Client) SetWebhookAsync(ctx context.Context, options WebhookOptions) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("setWebhook", options.body()))
}

func deleteWebhook(dropPending bool) map[string]interface{} {
	return map[string]interface{}{"drop_pending_updates": dropPending}
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) (Response, error) {
	return exec.Run(ctx, c.checked("deleteWebhook", deleteWebhook(dropPending)))
}

func (c *Client) DeleteWebhookAsync(ctx context.Context, dropPending bool) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("deleteWebhook", deleteWebhook(dropPending)))
}

func (c *Client) GetWebhookInfo(ctx context.Context) (Response, error) {
	return exec.Run(ctx, c.checked("getWebhookInfo", nil))
}

func (c *Client) GetWebhookInfoAsync(ctx context.Context) *exec.Task[Response] {
	return exec.Go(ctx, c.checked("getWebhookInfo", nil))
}
