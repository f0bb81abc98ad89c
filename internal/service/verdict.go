package service

import (
	"sort"
	"time"

	"github.com/scanops/envelope-batch-api/internal/dto"
	"github.com/scanops/envelope-batch-api/internal/models"
)

// NormalizeItem turns a raw submission into a persistable item, computing the
// verdict against the batch's configured scanners. Slots outside the
// configuration are stored as-is but never influence result or fallback.
//
// The verdict walks configured slots in ascending order: a missing reading
// marks the item as fallback and evaluation continues; an explicitly invalid
// reading fails the item and stops evaluation, whether or not it carried a
// value. An item whose configured readings are all present and none invalid
// passes.
func NormalizeItem(raw dto.RawItem, batchID int64, configured models.ScannerList, now time.Time) models.Item {
	item := models.Item{
		BatchID:   batchID,
		Result:    models.ItemResultPass,
		CreatedAt: now,
	}
	if raw.ItemID != nil {
		item.ItemID = *raw.ItemID
	}

	item.Scanner1 = raw.Scanner1.Value
	item.Scanner1Valid = raw.Scanner1.Valid
	item.Scanner2 = raw.Scanner2.Value
	item.Scanner2Valid = raw.Scanner2.Valid
	item.Scanner3 = raw.Scanner3.Value
	item.Scanner3Valid = raw.Scanner3.Valid

	slots := append(models.ScannerList(nil), configured...)
	sort.Ints(slots)

	for _, slot := range slots {
		reading := raw.Reading(slot)
		if !reading.Present || reading.Value == nil {
			item.Fallback = true
		}
		if reading.Valid != nil && !*reading.Valid {
			item.Result = models.ItemResultFail
			break
		}
	}

	return item
}

// ValidateScanners checks a start-time scanner configuration: non-empty,
// no duplicates, every slot one of {1, 2, 3}.
func ValidateScanners(scanners []int) bool {
	if len(scanners) == 0 || len(scanners) > len(models.ScannerSlots) {
		return false
	}
	seen := make(map[int]bool, len(scanners))
	for _, slot := range scanners {
		if slot < 1 || slot > 3 || seen[slot] {
			return false
		}
		seen[slot] = true
	}
	return true
}
