package due

import (
	"sort"
	"strings"
	"time"

	"github.com/hray3182/Upkeep/internal/models"
)

// Estimate is an item's urgency key: the estimated number of days until it
// is due. Lower is more urgent; negative means overdue.
type Estimate struct {
	Item *models.MaintenanceItem
	Days float64
	OK   bool // false when no estimate exists; such items sort last
}

// UsageRate estimates distance driven per day from the vehicle's service
// history: the earliest completion record across all items against the
// current odometer.
func UsageRate(items []*models.MaintenanceItem, odometer int, now time.Time) (float64, bool) {
	var earliest *models.CompletionRecord
	for _, item := range items {
		for i := range item.Records {
			r := &item.Records[i]
			if earliest == nil || r.CompletedAt.Before(earliest.CompletedAt) {
				earliest = r
			}
		}
	}
	if earliest == nil {
		return 0, false
	}

	days := now.Sub(earliest.CompletedAt).Hours() / 24
	if days < 1 {
		return 0, false
	}
	rate := float64(odometer-earliest.Odometer) / days
	if rate <= 0 {
		return 0, false
	}
	return rate, true
}

// EstimateDays computes the urgency key of one item. Without a usage rate,
// remaining distance is used directly as the key.
func EstimateDays(item *models.MaintenanceItem, odometer int, now time.Time, rate float64, hasRate bool) Estimate {
	est := Estimate{Item: item}

	if date, ok := DateDue(item); ok {
		est.Days = float64(DaysUntil(now, date))
		est.OK = true
	}

	if odo, ok := OdometerDue(item); ok {
		remaining := float64(odo - odometer)
		days := remaining
		if hasRate {
			days = remaining / rate
		}
		if !est.OK || days < est.Days {
			est.Days = days
		}
		est.OK = true
	}

	return est
}

// Rank orders items from most to least urgent. Ties resolve by name and
// then by ID so the order is stable across runs.
func Rank(items []*models.MaintenanceItem, odometer int, now time.Time) []Estimate {
	rate, hasRate := UsageRate(items, odometer, now)

	estimates := make([]Estimate, 0, len(items))
	for _, item := range items {
		estimates = append(estimates, EstimateDays(item, odometer, now, rate, hasRate))
	}

	sort.SliceStable(estimates, func(i, j int) bool {
		a, b := estimates[i], estimates[j]
		if a.OK != b.OK {
			return a.OK
		}
		if a.OK && a.Days != b.Days {
			return a.Days < b.Days
		}
		an, bn := strings.ToLower(a.Item.Name), strings.ToLower(b.Item.Name)
		if an != bn {
			return an < bn
		}
		return a.Item.ItemID.String() < b.Item.ItemID.String()
	})
	return estimates
}

// NextDueItem returns the single most urgent item, or nil when there are none.
func NextDueItem(items []*models.MaintenanceItem, odometer int, now time.Time) *models.MaintenanceItem {
	if len(items) == 0 {
		return nil
	}
	return Rank(items, odometer, now)[0].Item
}
