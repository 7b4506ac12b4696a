package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/Upkeep/internal/due"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/hray3182/Upkeep/internal/service"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func (h *Handlers) handleVehicles(ctx context.Context, msg *tgbotapi.Message) {
	vehicles, err := h.svc.Vehicles(ctx)
	if err != nil {
		h.fail(msg.Chat.ID, "list_vehicles", err)
		return
	}
	if len(vehicles) == 0 {
		h.sendMessage(msg.Chat.ID, "No vehicles yet. Add one with /addvehicle <name> [odometer]")
		return
	}

	unit := h.distanceUnit(ctx)
	var sb strings.Builder
	sb.WriteString("🚗 **Vehicles**\n\n")
	for _, v := range vehicles {
		sb.WriteString(printer.Sprintf("• %s: %d %s\n", v.Name, v.Odometer, unit))
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleAddVehicle(ctx context.Context, msg *tgbotapi.Message, args []string) {
	rest, odometer, _ := trailingNumber(args)
	if len(rest) == 0 {
		h.sendMessage(msg.Chat.ID, "Usage: /addvehicle <name> [odometer]")
		return
	}

	vehicle, err := h.svc.AddVehicle(ctx, strings.Join(rest, " "), odometer)
	if err != nil {
		h.fail(msg.Chat.ID, "add_vehicle", err)
		return
	}
	h.sendMessage(msg.Chat.ID, printer.Sprintf("✅ Added **%s** at %d %s", vehicle.Name, vehicle.Odometer, h.distanceUnit(ctx)))
}

func (h *Handlers) handleRename(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /rename <vehicle> <new name>")
		return
	}

	vehicle, err := h.svc.FindVehicle(ctx, args[0])
	if err != nil {
		h.fail(msg.Chat.ID, "find_vehicle", err)
		return
	}
	previous := vehicle.Name
	if err := h.svc.RenameVehicle(ctx, vehicle, strings.Join(args[1:], " ")); err != nil {
		h.fail(msg.Chat.ID, "rename_vehicle", err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ %s is now **%s**", previous, vehicle.Name))
}

func (h *Handlers) handleOdometer(ctx context.Context, msg *tgbotapi.Message, args []string) {
	rest, reading, ok := trailingNumber(args)
	if !ok {
		h.sendMessage(msg.Chat.ID, "Usage: /odo [vehicle] <reading>")
		return
	}

	vehicle, err := h.svc.FindVehicle(ctx, strings.Join(rest, " "))
	if err != nil {
		h.fail(msg.Chat.ID, "find_vehicle", err)
		return
	}

	stored, err := h.svc.RecordOdometer(ctx, vehicle, reading)
	if err != nil {
		h.fail(msg.Chat.ID, "record_odometer", err)
		return
	}

	unit := h.distanceUnit(ctx)
	if reading < stored {
		h.sendMessage(msg.Chat.ID, printer.Sprintf("ℹ️ %s is already at %d %s, the odometer only goes up", vehicle.Name, stored, unit))
		return
	}
	h.sendMessage(msg.Chat.ID, printer.Sprintf("✅ %s odometer: %d %s", vehicle.Name, stored, unit))
}

func (h *Handlers) handleStatus(ctx context.Context, msg *tgbotapi.Message, args []string) {
	var vehicles []*models.Vehicle
	if len(args) > 0 {
		vehicle, err := h.svc.FindVehicle(ctx, strings.Join(args, " "))
		if err != nil {
			h.fail(msg.Chat.ID, "find_vehicle", err)
			return
		}
		vehicles = []*models.Vehicle{vehicle}
	} else {
		var err error
		if vehicles, err = h.svc.Vehicles(ctx); err != nil {
			h.fail(msg.Chat.ID, "list_vehicles", err)
			return
		}
	}
	if len(vehicles) == 0 {
		h.sendMessage(msg.Chat.ID, "No vehicles yet. Add one with /addvehicle <name> [odometer]")
		return
	}

	unit := h.distanceUnit(ctx)
	var sb strings.Builder
	for _, vehicle := range vehicles {
		statuses, err := h.svc.VehicleStatus(ctx, vehicle)
		if err != nil {
			h.fail(msg.Chat.ID, "vehicle_status", err)
			return
		}
		sb.WriteString(printer.Sprintf("🚗 **%s** (%d %s)\n", vehicle.Name, vehicle.Odometer, unit))
		if len(statuses) == 0 {
			sb.WriteString("No items tracked\n")
		}
		for _, st := range statuses {
			sb.WriteString(statusLine(st))
		}
		sb.WriteString("\n")
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleNext(ctx context.Context, msg *tgbotapi.Message) {
	vehicles, err := h.svc.Vehicles(ctx)
	if err != nil {
		h.fail(msg.Chat.ID, "list_vehicles", err)
		return
	}

	var sb strings.Builder
	sb.WriteString("⏭ **Next up**\n\n")
	found := false
	for _, vehicle := range vehicles {
		next, err := h.svc.NextDue(ctx, vehicle)
		if err != nil {
			h.fail(msg.Chat.ID, "next_due", err)
			return
		}
		if next == nil {
			continue
		}
		found = true
		sb.WriteString(fmt.Sprintf("%s %s: %s\n", statusIcon(next.Status), vehicle.Name, next.Item.Name))
		if next.Description != "" {
			sb.WriteString("   " + next.Description + "\n")
		}
	}
	if !found {
		h.sendMessage(msg.Chat.ID, "Nothing tracked yet. Add items with /additem")
		return
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func statusIcon(s due.Status) string {
	switch s {
	case due.Overdue:
		return "🔴"
	case due.Due:
		return "🟡"
	default:
		return "🟢"
	}
}

func statusLine(st service.ItemStatus) string {
	line := statusIcon(st.Status) + " " + st.Item.Name
	if st.Description != "" {
		line += ": " + st.Description
	}
	return line + "\n"
}

func (h *Handlers) distanceUnit(ctx context.Context) models.DistanceUnit {
	settings, err := h.svc.Settings(ctx)
	if err != nil {
		return models.DistanceMiles
	}
	return settings.DistanceUnit
}
