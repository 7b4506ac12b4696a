package due

import (
	"strings"
	"time"

	"github.com/hray3182/Upkeep/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Describe renders the due computation of an item for display, e.g.
// "Due in 2,481 mi or 72 days" or "Overdue by 200 mi".
func Describe(item *models.MaintenanceItem, odometer int, now time.Time, unit models.DistanceUnit) string {
	if !item.IsTracked() {
		return "No interval set"
	}
	if item.LastRecord() == nil {
		return "Not logged yet"
	}
	if unit == "" {
		unit = models.DistanceMiles
	}

	var upcoming, overdue []string

	if odo, ok := OdometerDue(item); ok {
		delta := odo - odometer
		if delta < 0 {
			overdue = append(overdue, printer.Sprintf("%d %s", -delta, unit))
		} else {
			upcoming = append(upcoming, printer.Sprintf("%d %s", delta, unit))
		}
	}

	if date, ok := DateDue(item); ok {
		if date.Before(now) {
			overdue = append(overdue, days(DaysUntil(date, now)))
		} else {
			upcoming = append(upcoming, days(DaysUntil(now, date)))
		}
	}

	if len(overdue) > 0 {
		return "Overdue by " + strings.Join(overdue, " and ")
	}
	return "Due in " + strings.Join(upcoming, " or ")
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return printer.Sprintf("%d days", n)
}
