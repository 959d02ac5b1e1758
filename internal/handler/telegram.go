package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/service/navigation"
	"go.uber.org/zap"
)

const (
	callbackCompleteYes = "complete_yes_"
	callbackCompleteNo  = "complete_no_"
)

// botAPI is the part of *tgbotapi.BotAPI the handler talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramHandler struct {
	api     botAPI
	service Service
}

func NewTelegramHandler(token string, service Service) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return &TelegramHandler{
		api:     api,
		service: service,
	}, nil
}

// Start polls updates until ctx ends.
func (h *TelegramHandler) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.api.GetUpdatesChan(u)

	zap.L().Info("bot started")

	go func() {
		<-ctx.Done()
		h.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil && update.CallbackQuery == nil {
			continue
		}

		h.handleUpdate(ctx, update)
	}
}

// NotifyCompletion asks the learner in chat whether to move on to the next
// module. The answer comes back as a callback.
func (h *TelegramHandler) NotifyCompletion(ctx context.Context, chatID int64, p navigation.CompletionPrompt) error {
	text := fmt.Sprintf("🎉 You finished a module of <b>%s</b>.\n\nContinue with <b>%s</b>?",
		escapeHTML(p.CourseTitle), escapeHTML(p.NextModuleTitle))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Continue", callbackCompleteYes+p.SessionID),
			tgbotapi.NewInlineKeyboardButtonData("Not now", callbackCompleteNo+p.SessionID),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		return fmt.Errorf("send completion prompt (chat_id: %d, session_id: %s): %w", chatID, p.SessionID, err)
	}

	return nil
}

func (h *TelegramHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil && update.Message.IsCommand() {
		if update.Message.From == nil {
			zap.L().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	} else if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil {
			zap.L().Warn("received callback without user or message")
			return
		}
		h.handleCallback(ctx, update)
	}
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		h.handleStart(ctx, update)
	case "progress":
		h.handleProgress(ctx, update)
	case "help":
		h.handleHelp(ctx, update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Unknown command. Use /help")
	}
}

func (h *TelegramHandler) handleStart(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	text := fmt.Sprintf(`👋 Hi, %s!

I will ask you here before moving you to the next module of a course.

Your chat id is <code>%d</code>. Enter it in the course player to link this chat.`,
		escapeHTML(update.Message.From.FirstName), chatID)

	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleProgress(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	snapshots := h.service.ChatSessions(chatID)
	if len(snapshots) == 0 {
		h.sendMessage(chatID, "No open courses are linked to this chat.")
		return
	}

	h.sendMessage(chatID, formatProgress(snapshots))
}

func (h *TelegramHandler) handleHelp(ctx context.Context, update tgbotapi.Update) {
	text := `📚 <b>Course player</b>

Commands:

/start - Link this chat to the course player
/progress - Show progress of your open courses
/help - Help`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleCallback(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	data := callback.Data
	chatID := callback.Message.Chat.ID

	if sessionID, ok := strings.CutPrefix(data, callbackCompleteYes); ok {
		h.handleCompletionAnswer(chatID, sessionID, true)
	} else if sessionID, ok := strings.CutPrefix(data, callbackCompleteNo); ok {
		h.handleCompletionAnswer(chatID, sessionID, false)
	} else {
		zap.L().Warn("unknown callback data", zap.String("data", data), zap.Int64("user_id", callback.From.ID))
		h.sendMessage(chatID, "Unknown command. Use /help")
	}

	callbackConfig := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(callbackConfig); err != nil {
		zap.L().Error("send callback answer", zap.Error(err), zap.String("callback_id", callback.ID))
	}
}

func (h *TelegramHandler) handleCompletionAnswer(chatID int64, sessionID string, accept bool) {
	err := h.service.ConfirmFromChat(sessionID, chatID, accept)
	switch {
	case errors.Is(err, models.ErrNoPendingConfirmation), errors.Is(err, models.ErrSessionNotFound):
		h.sendMessage(chatID, "This question has already been answered or the course was closed.")
		return
	case err != nil:
		zap.L().Error("confirm module completion", zap.Error(err), zap.String("session_id", sessionID))
		h.sendMessage(chatID, "Could not save your answer, try again from the course player.")
		return
	}

	if accept {
		h.sendMessage(chatID, "✅ Moving on to the next module.")
	} else {
		h.sendMessage(chatID, "Staying on the current module.")
	}
}

func formatProgress(snapshots []navigation.Snapshot) string {
	var b strings.Builder
	for i, s := range snapshots {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := strings.TrimPrefix(s.Title, "Learning | ")
		fmt.Fprintf(&b, "<b>%s</b>\n%s", escapeHTML(title), escapeHTML(s.ProgressLabel))
		if s.ModuleProgress != "" {
			fmt.Fprintf(&b, "\nModule %s", escapeHTML(s.ModuleProgress))
		}
		if s.LessonProgress != "" {
			fmt.Fprintf(&b, "\nLesson %s", escapeHTML(s.LessonProgress))
		}
		if s.CourseFinished {
			b.WriteString("\n🏁 Course finished")
		} else if s.Awaiting != nil {
			b.WriteString("\n⏸ Waiting for your answer")
		}
	}
	return b.String()
}

// escapeHTML escapes the three characters Telegram's HTML mode reserves.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		zap.L().Error("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
