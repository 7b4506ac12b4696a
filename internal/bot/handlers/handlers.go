package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/Upkeep/internal/ai"
	"github.com/hray3182/Upkeep/internal/format"
	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/hray3182/Upkeep/internal/repository"
	"github.com/hray3182/Upkeep/internal/service"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// API is the part of *tgbotapi.BotAPI the handlers use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Service is the maintenance API behind the commands.
type Service interface {
	Vehicles(ctx context.Context) ([]*models.Vehicle, error)
	FindVehicle(ctx context.Context, name string) (*models.Vehicle, error)
	FindItem(ctx context.Context, vehicle *models.Vehicle, name string) (*models.MaintenanceItem, error)
	Settings(ctx context.Context) (*models.Settings, error)

	AddVehicle(ctx context.Context, name string, odometer int) (*models.Vehicle, error)
	AddItem(ctx context.Context, vehicle *models.Vehicle, name string, distance, interval int, unit models.TimeUnit) (*models.MaintenanceItem, error)
	LogService(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem,
		completedAt time.Time, odometer int, cost *float64, note string) (*models.CompletionRecord, error)
	UpdateIntervals(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem, distance, interval int, unit models.TimeUnit) error
	DeleteItem(ctx context.Context, item *models.MaintenanceItem) error
	UndoLastRecord(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) (*models.CompletionRecord, error)
	RenameVehicle(ctx context.Context, vehicle *models.Vehicle, name string) error
	RecordOdometer(ctx context.Context, vehicle *models.Vehicle, odometer int) (int, error)
	UpdateThresholds(ctx context.Context, distance, days int) (*models.Settings, error)
	LinkChat(ctx context.Context, chatID int64) error

	VehicleStatus(ctx context.Context, vehicle *models.Vehicle) ([]service.ItemStatus, error)
	NextDue(ctx context.Context, vehicle *models.Vehicle) (*service.ItemStatus, error)
}

// Parser turns free text into a structured service log.
type Parser interface {
	ParseServiceLog(ctx context.Context, text string, now time.Time, vehicles, items []string) (*ai.ServiceLog, error)
}

const confirmTimeout = 5 * time.Minute

// pendingAction is a write waiting for the user's confirmation.
type pendingAction struct {
	run       func(ctx context.Context) (string, error)
	expiresAt time.Time
}

type Handlers struct {
	api    API
	svc    Service
	ai     Parser
	clock  clockz.Clock
	logger *zap.Logger

	mu      sync.Mutex
	pending map[int64]*pendingAction // userID -> action
}

// New creates the handlers. parser may be nil when no AI key is configured.
func New(api API, svc Service, parser Parser, clock clockz.Clock, log *zap.Logger) *Handlers {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Handlers{
		api:     api,
		svc:     svc,
		ai:      parser,
		clock:   clock,
		logger:  logger.OrNop(log),
		pending: make(map[int64]*pendingAction),
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.sendMessage(msg.Chat.ID, helpText)
	case "vehicles":
		h.handleVehicles(ctx, msg)
	case "addvehicle":
		h.handleAddVehicle(ctx, msg, args)
	case "rename":
		h.handleRename(ctx, msg, args)
	case "odo":
		h.handleOdometer(ctx, msg, args)
	case "status":
		h.handleStatus(ctx, msg, args)
	case "next":
		h.handleNext(ctx, msg)
	case "additem":
		h.handleAddItem(ctx, msg, args)
	case "interval":
		h.handleInterval(ctx, msg, args)
	case "delitem":
		h.handleDeleteItem(ctx, msg, args)
	case "done":
		h.handleDone(ctx, msg, args)
	case "undo":
		h.handleUndo(ctx, msg, args)
	case "history":
		h.handleHistory(ctx, msg, args)
	case "thresholds":
		h.handleThresholds(ctx, msg, args)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, see /help")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	h.handleAIMessage(ctx, msg)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
	if callback.Message == nil {
		return
	}

	// "confirm:userID" or "cancel:userID"
	action, id, ok := strings.Cut(callback.Data, ":")
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}

	if callback.From == nil || callback.From.ID != userID {
		if _, err := h.api.Request(tgbotapi.NewCallbackWithAlert(callback.ID, "This is not your action")); err != nil {
			h.logger.Warn("Failed to answer callback", zap.Error(err))
		}
		return
	}

	pending := h.takePending(userID)
	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID
	if pending == nil {
		h.editMessage(chatID, messageID, "⏰ Confirmation expired")
		return
	}

	switch action {
	case "confirm":
		result, err := pending.run(ctx)
		if err != nil {
			h.logger.Error("Confirmed action failed", zap.Int64("user_id", userID), zap.Error(err))
			h.editMessage(chatID, messageID, "❌ "+userError(err))
			return
		}
		h.editMessage(chatID, messageID, "✅ "+result)
	case "cancel":
		h.editMessage(chatID, messageID, "❌ Cancelled")
	}
}

// confirm stores run for userID and asks for confirmation with prompt.
func (h *Handlers) confirm(chatID, userID int64, prompt string, run func(ctx context.Context) (string, error)) {
	h.mu.Lock()
	h.pending[userID] = &pendingAction{run: run, expiresAt: h.clock.Now().Add(confirmTimeout)}
	h.mu.Unlock()

	msg := format.Message(chatID, prompt)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", fmt.Sprintf("confirm:%d", userID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", fmt.Sprintf("cancel:%d", userID)),
		),
	)
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("Failed to send confirmation", zap.Error(err))
	}
}

// takePending removes and returns the user's pending action, or nil when
// none is pending or it expired.
func (h *Handlers) takePending(userID int64) *pendingAction {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending, ok := h.pending[userID]
	if !ok {
		return nil
	}
	delete(h.pending, userID)
	if h.clock.Now().After(pending.expiresAt) {
		return nil
	}
	return pending
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	if _, err := h.api.Send(format.Message(chatID, text)); err != nil {
		h.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handlers) editMessage(chatID int64, messageID int, text string) {
	if _, err := h.api.Send(format.Edit(chatID, messageID, text)); err != nil {
		h.logger.Warn("Failed to edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// fail logs err and replies with a short explanation.
func (h *Handlers) fail(chatID int64, op string, err error) {
	if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrDuplicate) {
		h.logger.Error("Command failed", zap.String("op", op), zap.Error(err))
	}
	h.sendMessage(chatID, "❌ "+userError(err))
}

func userError(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "Not found, check the name with /vehicles or /status"
	case errors.Is(err, repository.ErrDuplicate):
		return "That name is already in use on this vehicle"
	case errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidInterval),
		errors.Is(err, service.ErrInvalidOdometer),
		errors.Is(err, service.ErrNoRecords):
		return capitalize(err.Error())
	default:
		return "Something went wrong, please try again"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.svc.LinkChat(ctx, msg.Chat.ID); err != nil {
		h.fail(msg.Chat.ID, "link_chat", err)
		return
	}

	name := "there"
	if msg.From != nil && msg.From.FirstName != "" {
		name = msg.From.FirstName
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("👋 Hi %s! Maintenance reminders will be sent to this chat.\n\n%s", name, helpText))
}

const helpText = `**Commands**
/vehicles - list vehicles
/addvehicle <name> [odometer] - add a vehicle
/rename <vehicle> <new name> - rename a vehicle
/odo [vehicle] <reading> - record an odometer reading
/status [vehicle] - due status of every item
/next - most urgent item per vehicle
/additem <vehicle> <item> <distance> <time> - track an item, e.g. ` + "`/additem civic Oil change 5000 6m`" + `
/interval <vehicle> <item> <distance> <time> - change intervals
/delitem <vehicle> <item> - stop tracking an item
/done <vehicle> <item> [odometer] - log a completed service
/undo <vehicle> <item> - remove the last logged service
/history <vehicle> <item> - past services
/thresholds <distance> <days> - when items count as due

Or just write what you did, e.g. _changed the oil on the civic at 15,200 yesterday_.`
