package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/Upkeep/internal/models"
)

func (h *Handlers) handleAddItem(ctx context.Context, msg *tgbotapi.Message, args []string) {
	parsed, err := parseItemArgs(args)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /additem <vehicle> <item> <distance> <time>\n"+capitalize(err.Error()))
		return
	}

	vehicle, err := h.svc.FindVehicle(ctx, parsed.vehicle)
	if err != nil {
		h.fail(msg.Chat.ID, "find_vehicle", err)
		return
	}

	item, err := h.svc.AddItem(ctx, vehicle, parsed.item, parsed.distance, parsed.interval, parsed.unit)
	if err != nil {
		h.fail(msg.Chat.ID, "add_item", err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Tracking **%s** on %s: %s\nLog the last service with /done %s %s [odometer]",
		item.Name, vehicle.Name, h.intervals(ctx, item), vehicle.Name, item.Name))
}

func (h *Handlers) handleInterval(ctx context.Context, msg *tgbotapi.Message, args []string) {
	parsed, err := parseItemArgs(args)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /interval <vehicle> <item> <distance> <time>\n"+capitalize(err.Error()))
		return
	}

	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, parsed.vehicle, parsed.item)
	if !ok {
		return
	}

	if err := h.svc.UpdateIntervals(ctx, vehicle, item, parsed.distance, parsed.interval, parsed.unit); err != nil {
		h.fail(msg.Chat.ID, "update_intervals", err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ **%s** on %s: %s", item.Name, vehicle.Name, h.intervals(ctx, item)))
}

func (h *Handlers) handleDeleteItem(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /delitem <vehicle> <item>")
		return
	}

	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, args[0], strings.Join(args[1:], " "))
	if !ok {
		return
	}

	prompt := fmt.Sprintf("🗑 Stop tracking **%s** on %s? Its %d service records will be deleted.",
		item.Name, vehicle.Name, len(item.Records))
	h.confirm(msg.Chat.ID, senderID(msg), prompt, func(ctx context.Context) (string, error) {
		if err := h.svc.DeleteItem(ctx, item); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted **%s** on %s", item.Name, vehicle.Name), nil
	})
}

func (h *Handlers) handleDone(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /done <vehicle> <item> [odometer]")
		return
	}

	rest, odometer, hasOdometer := trailingNumber(args)
	if len(rest) < 2 {
		rest, hasOdometer = args, false
	}

	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, rest[0], strings.Join(rest[1:], " "))
	if !ok {
		return
	}
	if !hasOdometer {
		odometer = vehicle.Odometer
	}

	h.logService(ctx, msg.Chat.ID, vehicle, item, &serviceEntry{odometer: odometer, completedAt: h.clock.Now()})
}

func (h *Handlers) handleUndo(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /undo <vehicle> <item>")
		return
	}

	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, args[0], strings.Join(args[1:], " "))
	if !ok {
		return
	}
	last := item.LastRecord()
	if last == nil {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("No service of **%s** logged yet", item.Name))
		return
	}

	unit := h.distanceUnit(ctx)
	prompt := printer.Sprintf("↩️ Remove the **%s** service of %s at %d %s?",
		last.CompletedAt.Format("2006-01-02"), item.Name, last.Odometer, unit)
	h.confirm(msg.Chat.ID, senderID(msg), prompt, func(ctx context.Context) (string, error) {
		removed, err := h.svc.UndoLastRecord(ctx, vehicle, item)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed the %s service of **%s**", removed.CompletedAt.Format("2006-01-02"), item.Name), nil
	})
}

const historyLimit = 10

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /history <vehicle> <item>")
		return
	}

	vehicle, item, ok := h.findItem(ctx, msg.Chat.ID, args[0], strings.Join(args[1:], " "))
	if !ok {
		return
	}
	if len(item.Records) == 0 {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("No service of **%s** logged yet", item.Name))
		return
	}

	item.SortRecords()
	unit := h.distanceUnit(ctx)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📜 **%s** on %s\n\n", item.Name, vehicle.Name))
	for i, r := range item.Records {
		if i == historyLimit {
			sb.WriteString(fmt.Sprintf("… and %d more\n", len(item.Records)-historyLimit))
			break
		}
		line := printer.Sprintf("• %s at %d %s", r.CompletedAt.Format("2006-01-02"), r.Odometer, unit)
		if r.Cost != nil {
			line += printer.Sprintf(", %.2f", *r.Cost)
		}
		if r.Note != "" {
			line += " (" + r.Note + ")"
		}
		sb.WriteString(line + "\n")
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

// serviceEntry is one completed service waiting to be stored.
type serviceEntry struct {
	completedAt time.Time
	odometer    int
	cost        *float64
	note        string
}

func (h *Handlers) logService(ctx context.Context, chatID int64, vehicle *models.Vehicle, item *models.MaintenanceItem, entry *serviceEntry) {
	result, err := h.storeService(ctx, vehicle, item, entry)
	if err != nil {
		h.fail(chatID, "log_service", err)
		return
	}
	h.sendMessage(chatID, "✅ "+result)
}

func (h *Handlers) storeService(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem, entry *serviceEntry) (string, error) {
	if _, err := h.svc.LogService(ctx, vehicle, item, entry.completedAt, entry.odometer, entry.cost, entry.note); err != nil {
		return "", err
	}

	unit := h.distanceUnit(ctx)
	text := printer.Sprintf("Logged **%s** on %s at %d %s", item.Name, vehicle.Name, entry.odometer, unit)
	if statuses, err := h.svc.VehicleStatus(ctx, vehicle); err == nil {
		for _, st := range statuses {
			if st.Item.ItemID == item.ItemID && st.Description != "" {
				text += "\nNext: " + st.Description
			}
		}
	}
	return text, nil
}

func (h *Handlers) handleThresholds(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 2 {
		settings, err := h.svc.Settings(ctx)
		if err != nil {
			h.fail(msg.Chat.ID, "settings", err)
			return
		}
		h.sendMessage(msg.Chat.ID, printer.Sprintf("Items count as due within %d %s or %d days.\nUsage: /thresholds <distance> <days>",
			settings.DistanceThreshold, settings.DistanceUnit, settings.DaysThreshold))
		return
	}

	distance, errDistance := parseNumber(args[0])
	days, errDays := parseNumber(args[1])
	if errDistance != nil || errDays != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /thresholds <distance> <days>")
		return
	}

	settings, err := h.svc.UpdateThresholds(ctx, distance, days)
	if err != nil {
		h.fail(msg.Chat.ID, "update_thresholds", err)
		return
	}
	h.sendMessage(msg.Chat.ID, printer.Sprintf("✅ Items now count as due within %d %s or %d days",
		settings.DistanceThreshold, settings.DistanceUnit, settings.DaysThreshold))
}

func (h *Handlers) findItem(ctx context.Context, chatID int64, vehicleName, itemName string) (*models.Vehicle, *models.MaintenanceItem, bool) {
	vehicle, err := h.svc.FindVehicle(ctx, vehicleName)
	if err != nil {
		h.fail(chatID, "find_vehicle", err)
		return nil, nil, false
	}
	item, err := h.svc.FindItem(ctx, vehicle, itemName)
	if err != nil {
		h.fail(chatID, "find_item", err)
		return nil, nil, false
	}
	return vehicle, item, true
}

func (h *Handlers) intervals(ctx context.Context, item *models.MaintenanceItem) string {
	var parts []string
	if item.DistanceInterval > 0 {
		parts = append(parts, printer.Sprintf("every %d %s", item.DistanceInterval, h.distanceUnit(ctx)))
	}
	if item.TimeInterval > 0 {
		unit := string(item.TimeUnit)
		if item.TimeInterval == 1 {
			unit = strings.TrimSuffix(unit, "s")
		}
		parts = append(parts, fmt.Sprintf("every %d %s", item.TimeInterval, unit))
	}
	if len(parts) == 0 {
		return "no interval set"
	}
	return strings.Join(parts, " or ")
}

func senderID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}
