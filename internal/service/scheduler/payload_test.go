package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-scheduler/internal/domain/alarm"
)

func TestPayload_CarriesDailyTimeOfDay(t *testing.T) {
	t.Parallel()

	req := &alarm.Request{Identifier: 2, Title: "Standup", Body: "Room 4", Mode: alarm.Daily(9, 30)}

	data, err := EncodePayload(req)
	require.NoError(t, err)
	require.Contains(t, string(data), `"notificationId"`)

	got, err := DecodePayload(data)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestPayload_CarriesOneShotDelay(t *testing.T) {
	t.Parallel()

	req := &alarm.Request{Identifier: 999, Title: "T", Body: "B", Mode: alarm.OneShot(-3)}

	data, err := EncodePayload(req)
	require.NoError(t, err)

	got, err := DecodePayload(data)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestDecodePayload_Rejects(t *testing.T) {
	t.Parallel()

	for name, data := range map[string]string{
		"not json":   "payload",
		"missing id": `{"title":"T","body":"B"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := DecodePayload([]byte(data))
			require.ErrorIs(t, err, errMalformedPayload)
		})
	}
}
