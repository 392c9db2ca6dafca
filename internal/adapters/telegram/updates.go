package telegram

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollErrorPause = 3 * time.Second

// Update — апдейт Telegram вместе с идентификатором треда. Клиентская
// библиотека тредов не знает, поэтому ответ getUpdates разбирается
// дважды: типизированно и сырым экстрактором message_thread_id.
type Update struct {
	tgbotapi.Update
	ThreadID int
}

type threadProbe struct {
	Message *struct {
		MessageThreadID int `json:"message_thread_id"`
	} `json:"message"`
}

// Updates запускает длинный опрос getUpdates и отдаёт апдейты в канал.
// Канал закрывается при отмене контекста.
func (s *Sender) Updates(ctx context.Context, timeout int) <-chan Update {
	out := make(chan Update, 100)
	go func() {
		defer close(out)
		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			params := tgbotapi.Params{}
			params.AddNonZero64("offset", offset)
			params.AddNonZero("timeout", timeout)
			params["allowed_updates"] = `["message","callback_query","poll_answer","my_chat_member"]`

			resp, err := s.bot.MakeRequest("getUpdates", params)
			if err != nil {
				s.log.Warn().Err(err).Msg("telegram: опрос getUpdates")
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollErrorPause):
				}
				continue
			}

			var raws []json.RawMessage
			if err := json.Unmarshal(resp.Result, &raws); err != nil {
				s.log.Error().Err(err).Msg("telegram: разбор getUpdates")
				continue
			}
			for _, raw := range raws {
				var upd tgbotapi.Update
				if err := json.Unmarshal(raw, &upd); err != nil {
					s.log.Error().Err(err).Str("raw", truncate(string(raw), 200)).Msg("telegram: разбор апдейта")
					continue
				}
				if int64(upd.UpdateID) >= offset {
					offset = int64(upd.UpdateID) + 1
				}
				var probe threadProbe
				_ = json.Unmarshal(raw, &probe)
				threadID := 0
				if probe.Message != nil {
					threadID = probe.Message.MessageThreadID
				}
				select {
				case out <- Update{Update: upd, ThreadID: threadID}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "… (" + strconv.Itoa(len(s)) + " байт)"
}
