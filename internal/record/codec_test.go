package record_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/models"
	"ms-payments/internal/record"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	updated := created.Add(2 * time.Minute)

	tr := &models.TransactionRecord{
		ID:     "txn_1",
		Amount: "42.00",
		Status: models.StatusSubmittedForSettlement,
		Instrument: &models.InstrumentDetails{
			Type:         "Visa",
			MaskedNumber: "401288******1881",
		},
		ProcessorResponseCode: "1000",
		ProcessorResponseText: "Approved",
		RefundIDs:             []string{"ref_1", "ref_2"},
		CreatedAt:             created,
		UpdatedAt:             updated,
	}

	raw, err := record.Encode(tr)
	require.NoError(t, err)

	decoded, err := record.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tr, decoded)
}

func TestEncodeNilTransaction(t *testing.T) {
	_, err := record.Encode(nil)
	assert.Error(t, err)
}

func TestDecodeEmptyInfo(t *testing.T) {
	decoded, err := record.Decode("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeMalformedInfo(t *testing.T) {
	_, err := record.Decode("{not json")
	assert.Error(t, err)
}

func TestErrorRecord(t *testing.T) {
	raw := record.EncodeError("card declined")
	assert.JSONEq(t, `{"error":"card declined"}`, raw)

	msg, ok := record.DecodeError(raw)
	require.True(t, ok)
	assert.Equal(t, "card declined", msg)

	// An error record decodes into a snapshot with no reference ID.
	decoded, err := record.Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, decoded.ID)
}

func TestDecodeErrorOnRealTransaction(t *testing.T) {
	raw, err := record.Encode(&models.TransactionRecord{ID: "txn_2", Amount: "10.00", Status: models.StatusSettled})
	require.NoError(t, err)

	_, ok := record.DecodeError(raw)
	assert.False(t, ok)
}
