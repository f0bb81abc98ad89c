package dto

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/scanops/envelope-batch-api/internal/models"
)

// StartBatchRequest opens a new scanning batch.
type StartBatchRequest struct {
	Scanners  []int   `json:"scanners_configured" validate:"required,min=1,max=3,dive,min=1,max=3"`
	BatchCode *string `json:"batch_code" validate:"omitempty,max=50"`
}

// StartBatchResponse echoes the created batch identity and configuration.
type StartBatchResponse struct {
	BatchID  int64 `json:"batch_id"`
	Scanners []int `json:"scanners_configured"`
}

// ScannerReading is the resolved form of one scanner field in a raw item.
// Clients may send a bare string, a {value, valid} object, or nothing;
// UnmarshalJSON collapses all three into this shape. A nil Valid means the
// validity is unknown, Present is false when the field was absent or null.
type ScannerReading struct {
	Present bool
	Value   *string
	Valid   *bool
}

// UnmarshalJSON accepts null, a bare scalar, or a {value, valid} object.
func (r *ScannerReading) UnmarshalJSON(data []byte) error {
	*r = ScannerReading{}
	if string(data) == "null" {
		return nil
	}

	var obj struct {
		Value *json.RawMessage `json:"value"`
		Valid *bool            `json:"valid"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && (obj.Value != nil || obj.Valid != nil) {
		r.Present = true
		r.Valid = obj.Valid
		if obj.Value != nil {
			value, err := scalarString(*obj.Value)
			if err != nil {
				return err
			}
			r.Value = value
		}
		return nil
	}

	value, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("scanner reading must be a scalar or {value, valid} object")
	}
	r.Present = true
	r.Value = value
	return nil
}

// MarshalJSON emits the canonical wire form: null when absent, a bare string
// when the validity is unknown, a {value, valid} object otherwise. The output
// round-trips through UnmarshalJSON.
func (r ScannerReading) MarshalJSON() ([]byte, error) {
	if !r.Present {
		return []byte("null"), nil
	}
	if r.Valid == nil {
		return json.Marshal(r.Value)
	}
	return json.Marshal(struct {
		Value *string `json:"value"`
		Valid *bool   `json:"valid"`
	}{Value: r.Value, Valid: r.Valid})
}

func scalarString(data []byte) (*string, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return &s, nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		formatted := strconv.FormatFloat(n, 'f', -1, 64)
		return &formatted, nil
	}
	return nil, fmt.Errorf("unsupported scalar %s", data)
}

// RawItem is one scan result as submitted to the finish operation, before
// verdict computation.
type RawItem struct {
	ItemID   *int64         `json:"item_id"`
	Scanner1 ScannerReading `json:"scanner_1"`
	Scanner2 ScannerReading `json:"scanner_2"`
	Scanner3 ScannerReading `json:"scanner_3"`
}

// Reading returns the submitted reading for a slot.
func (i RawItem) Reading(slot int) ScannerReading {
	switch slot {
	case 1:
		return i.Scanner1
	case 2:
		return i.Scanner2
	case 3:
		return i.Scanner3
	}
	return ScannerReading{}
}

// FinishBatchRequest closes a batch with its full item set.
type FinishBatchRequest struct {
	Items []RawItem `json:"items"`
}

// FinishBatchResponse reports the finalize outcome.
type FinishBatchResponse struct {
	Status     string `json:"status"`
	TotalItems int    `json:"total_items"`
	Scanners   []int  `json:"scanners_used"`
}

// BatchDetailResponse combines batch metadata with its persisted items.
type BatchDetailResponse struct {
	Batch     models.Batch  `json:"batch"`
	Items     []models.Item `json:"items"`
	PassCount int           `json:"pass_count"`
	FailCount int           `json:"fail_count"`
}

// ImportResponse carries raw items parsed from an uploaded spreadsheet,
// ready to be submitted to the finish operation.
type ImportResponse struct {
	Items        []RawItem `json:"items"`
	TotalItems   int       `json:"total_items"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
}
