// Package record serializes gateway transaction snapshots to and from the
// payment_info field persisted on an order.
package record

import (
	"encoding/json"
	"fmt"

	"ms-payments/internal/models"
)

// errorRecord is the shape stored when a charge attempt produced no gateway
// transaction at all.
type errorRecord struct {
	Error string `json:"error"`
}

// Encode serializes a transaction snapshot for storage on an order.
func Encode(tr *models.TransactionRecord) (string, error) {
	if tr == nil {
		return "", fmt.Errorf("record: nil transaction")
	}
	raw, err := json.Marshal(tr)
	if err != nil {
		return "", fmt.Errorf("record: encode transaction %s: %w", tr.ID, err)
	}
	return string(raw), nil
}

// EncodeError serializes a bare gateway error message, used when the charge
// failed without the gateway reporting any transaction data.
func EncodeError(message string) string {
	raw, _ := json.Marshal(errorRecord{Error: message})
	return string(raw)
}

// Decode parses a persisted payment_info value back into a transaction
// snapshot. An error record decodes into a snapshot with an empty ID; callers
// treat a missing ID as "nothing to reverse at the gateway".
func Decode(raw string) (*models.TransactionRecord, error) {
	if raw == "" {
		return nil, nil
	}
	var tr models.TransactionRecord
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return nil, fmt.Errorf("record: decode payment info: %w", err)
	}
	return &tr, nil
}

// DecodeError extracts the error message from a persisted error record.
// The second return is false if raw is not an error record.
func DecodeError(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var er errorRecord
	if err := json.Unmarshal([]byte(raw), &er); err != nil || er.Error == "" {
		return "", false
	}
	return er.Error, true
}
