package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	BookingID string `json:"booking_id"`
	Amount    string `json:"amount"`
}

func TestNewCloudEvent(t *testing.T) {
	ce, err := NewCloudEvent("service-rental", "rental.booking.created", "bk-1",
		samplePayload{BookingID: "bk-1", Amount: "80.00"})
	require.NoError(t, err)

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, "service-rental", ce.Source)
	assert.Equal(t, "rental.booking.created", ce.Type)
	assert.Equal(t, "bk-1", ce.Subject)
	assert.NotEmpty(t, ce.ID)
	assert.False(t, ce.Time.IsZero())

	var got samplePayload
	require.NoError(t, ce.ParseData(&got))
	assert.Equal(t, "80.00", got.Amount)
}

func TestParseCloudEvent(t *testing.T) {
	ce, err := NewCloudEvent("till-3", "rental.cashier.cash_collected", "", map[string]string{"payment_id": "p-1"})
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ce.ID, parsed.ID)
	assert.Equal(t, ce.Type, parsed.Type)

	_, err = ParseCloudEvent([]byte(`{"id":"x"}`))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseData_Empty(t *testing.T) {
	var v map[string]string
	assert.Error(t, CloudEvent{ID: "e"}.ParseData(&v))
}
