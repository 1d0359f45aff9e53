package mq

import (
	"encoding/json"
	"testing"
	"time"

	"scatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	in := models.OrderEvent{
		OrderID:        "65a1b2c3d4e5f60718293a4b",
		GatewayOrderID: "order_1",
		OwnerID:        "65a1b2c3d4e5f60718293a4c",
		AmountPaise:    90000,
		PaidAt:         time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := decodeEvent(string(raw))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeEvent(`{"orderId":"x"}`)
	assert.Error(t, err)
	_, err = decodeEvent(`not json`)
	assert.Error(t, err)
}
