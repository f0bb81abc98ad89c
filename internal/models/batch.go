package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BatchStatus enumerates lifecycle states of a scanning batch.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "Running"
	BatchStatusCompleted BatchStatus = "Completed"
)

// ItemResult is the computed verdict for a scanned item.
type ItemResult string

const (
	ItemResultPass    ItemResult = "Pass"
	ItemResultFail    ItemResult = "Fail"
	ItemResultUnknown ItemResult = "Unknown"
)

// ScannerSlots are the hardware input channels a batch may configure.
var ScannerSlots = []int{1, 2, 3}

// ScannerList is the ordered set of scanner slots configured for a batch,
// stored as a JSONB array.
type ScannerList []int

// Value implements driver.Valuer.
func (s ScannerList) Value() (driver.Value, error) {
	return json.Marshal([]int(s))
}

// Scan implements sql.Scanner.
func (s *ScannerList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]int)(s))
	case string:
		return json.Unmarshal([]byte(v), (*[]int)(s))
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("unsupported scanner list source %T", src)
	}
}

// Contains reports whether the slot is part of the configuration.
func (s ScannerList) Contains(slot int) bool {
	for _, v := range s {
		if v == slot {
			return true
		}
	}
	return false
}

// Batch is one scanning session. Scanner configuration is fixed at creation;
// end_time and total_items are set exactly once when the batch completes.
type Batch struct {
	ID         int64       `db:"id" json:"id"`
	BatchCode  *string     `db:"batch_code" json:"batch_code,omitempty"`
	Scanners   ScannerList `db:"scanners_configured" json:"scanners_configured"`
	Status     BatchStatus `db:"status" json:"status"`
	StartTime  time.Time   `db:"start_time" json:"start_time"`
	EndTime    *time.Time  `db:"end_time" json:"end_time,omitempty"`
	TotalItems *int        `db:"total_items" json:"total_items,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// Item is one persisted scan result row. Items are written only by the
// batch finalize operation and are immutable afterwards.
type Item struct {
	ID            int64      `db:"id" json:"-"`
	ItemID        int64      `db:"item_id" json:"item_id"`
	BatchID       int64      `db:"batch_id" json:"-"`
	Scanner1      *string    `db:"scanner_1" json:"scanner_1"`
	Scanner1Valid *bool      `db:"scanner_1_valid" json:"scanner_1_valid"`
	Scanner2      *string    `db:"scanner_2" json:"scanner_2"`
	Scanner2Valid *bool      `db:"scanner_2_valid" json:"scanner_2_valid"`
	Scanner3      *string    `db:"scanner_3" json:"scanner_3"`
	Scanner3Valid *bool      `db:"scanner_3_valid" json:"scanner_3_valid"`
	Result        ItemResult `db:"result" json:"result"`
	Fallback      bool       `db:"fallback" json:"fallback"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Value returns the stored reading for a slot.
func (i *Item) Value(slot int) *string {
	switch slot {
	case 1:
		return i.Scanner1
	case 2:
		return i.Scanner2
	case 3:
		return i.Scanner3
	}
	return nil
}

// BatchSummary is a batch row with pass/fail counts aggregated at read time.
// Items with an Unknown result count toward neither.
type BatchSummary struct {
	Batch
	PassCount int `db:"pass_count" json:"pass_count"`
	FailCount int `db:"fail_count" json:"fail_count"`
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	Status   BatchStatus
	Page     int
	PageSize int
}
