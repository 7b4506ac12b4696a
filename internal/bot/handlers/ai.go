package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/Upkeep/internal/ai"
	"go.uber.org/zap"
)

func (h *Handlers) handleAIMessage(ctx context.Context, msg *tgbotapi.Message) {
	if h.ai == nil {
		h.sendMessage(msg.Chat.ID, "Free-text logging is not enabled. Use /done <vehicle> <item> [odometer]")
		return
	}

	vehicles, err := h.svc.Vehicles(ctx)
	if err != nil {
		h.fail(msg.Chat.ID, "list_vehicles", err)
		return
	}
	if len(vehicles) == 0 {
		h.sendMessage(msg.Chat.ID, "No vehicles yet. Add one with /addvehicle <name> [odometer]")
		return
	}

	var vehicleNames, itemNames []string
	seen := make(map[string]bool)
	for _, v := range vehicles {
		vehicleNames = append(vehicleNames, v.Name)
		statuses, err := h.svc.VehicleStatus(ctx, v)
		if err != nil {
			h.fail(msg.Chat.ID, "vehicle_status", err)
			return
		}
		for _, st := range statuses {
			if !seen[st.Item.Name] {
				seen[st.Item.Name] = true
				itemNames = append(itemNames, st.Item.Name)
			}
		}
	}

	now := h.clock.Now()
	log, err := h.ai.ParseServiceLog(ctx, msg.Text, now, vehicleNames, itemNames)
	if err != nil {
		h.logger.Error("Failed to parse service log", zap.Error(err))
		h.sendMessage(msg.Chat.ID, "Sorry, I could not understand that. Try /help for the commands.")
		return
	}
	h.logger.Debug("Parsed service log",
		zap.String("action", log.Action),
		zap.String("vehicle", log.Vehicle),
		zap.String("item", log.Item),
		zap.String("raw", log.RawResponse))

	switch log.Action {
	case ai.ActionLogService:
		h.confirmServiceLog(ctx, msg, log)
	case ai.ActionUpdateOdometer:
		h.confirmOdometer(ctx, msg, log)
	default:
		reply := log.Message
		if reply == "" {
			reply = "I can log services and odometer readings. Try /help for the commands."
		}
		h.sendMessage(msg.Chat.ID, reply)
	}
}

func (h *Handlers) confirmServiceLog(ctx context.Context, msg *tgbotapi.Message, log *ai.ServiceLog) {
	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, log.Vehicle, log.Item)
	if !ok {
		return
	}

	entry := &serviceEntry{
		completedAt: log.CompletedAt(h.clock.Now()),
		odometer:    log.Odometer,
		cost:        log.CostPtr(),
		note:        log.Note,
	}
	if entry.odometer == 0 {
		entry.odometer = vehicle.Odometer
	}

	unit := h.distanceUnit(ctx)
	prompt := printer.Sprintf("🔧 Log **%s** on %s?\nDate: %s\nOdometer: %d %s",
		item.Name, vehicle.Name, entry.completedAt.Format("2006-01-02"), entry.odometer, unit)
	if entry.cost != nil {
		prompt += printer.Sprintf("\nCost: %.2f", *entry.cost)
	}
	if entry.note != "" {
		prompt += "\nNote: " + entry.note
	}

	h.confirm(msg.Chat.ID, senderID(msg), prompt, func(ctx context.Context) (string, error) {
		return h.storeService(ctx, vehicle, item, entry)
	})
}

func (h *Handlers) confirmOdometer(ctx context.Context, msg *tgbotapi.Message, log *ai.ServiceLog) {
	vehicle, err := h.svc.FindVehicle(ctx, log.Vehicle)
	if err != nil {
		h.fail(msg.Chat.ID, "find_vehicle", err)
		return
	}
	if log.Odometer <= 0 {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("What is the current odometer of %s? Use /odo %s <reading>", vehicle.Name, vehicle.Name))
		return
	}

	unit := h.distanceUnit(ctx)
	reading := log.Odometer
	prompt := printer.Sprintf("📟 Set %s odometer to %d %s?", vehicle.Name, reading, unit)
	h.confirm(msg.Chat.ID, senderID(msg), prompt, func(ctx context.Context) (string, error) {
		stored, err := h.svc.RecordOdometer(ctx, vehicle, reading)
		if err != nil {
			return "", err
		}
		return printer.Sprintf("%s odometer: %d %s", vehicle.Name, stored, unit), nil
	})
}
