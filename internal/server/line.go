package server

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/pkg/errors"
)

// lineFallbackReply is sent when a run fails. Internal failure detail never
// reaches the messaging channel.
const lineFallbackReply = "something went wrong, please try again later"

type lineHandler struct {
	srv           *Server
	channelSecret string
	bot           *messaging_api.MessagingApiAPI
}

func (s *Server) mountLine(channelSecret, channelToken string) error {
	bot, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return errors.Wrap(err, "init line messaging client")
	}
	h := &lineHandler{srv: s, channelSecret: channelSecret, bot: bot}
	s.e.POST("/linebot/callback", h.handleCallback)
	return nil
}

func (h *lineHandler) handleCallback(c *echo.Context) error {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot parse webhook")
	}

	for _, event := range cb.Events {
		me, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		tm, ok := me.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		userID := "line:unknown"
		if src, ok := me.Source.(webhook.UserSource); ok {
			userID = "line:" + src.UserId
		}

		reply, err := h.srv.converse(c.Request().Context(), userID, tm.Text)
		if err != nil {
			h.srv.log.Error().Err(err).Str("user_id", userID).Msg("line run failed")
			reply = lineFallbackReply
		}
		if _, err := h.bot.ReplyMessage(&messaging_api.ReplyMessageRequest{
			ReplyToken: me.ReplyToken,
			Messages: []messaging_api.MessageInterface{
				messaging_api.TextMessage{Text: reply},
			},
		}); err != nil {
			h.srv.log.Error().Err(err).Msg("line reply failed")
		}
	}
	return c.NoContent(http.StatusOK)
}
