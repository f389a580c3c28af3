package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/states"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatStateMessageIsAnsweredOnTheDispenseTopic(t *testing.T) {
	reporter := &reporterMock{}
	l, published := newListenerForTest(t, reporter)

	l.handleStateMessage("dispensers/device-1/state", []byte(`{"cup_placed":true,"sensor_reading":12.5}`))

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "device-1", reporter.deviceIDs[0])
	assert.True(t, *reporter.reports[0].CupPlaced)
	assert.Equal(t, 12.5, *reporter.reports[0].SensorReading)

	require.Contains(t, *published, "dispensers/device-1/dispense")

	result := states.ReportResult{}
	require.NoError(t, json.Unmarshal((*published)["dispensers/device-1/dispense"], &result))
	assert.True(t, result.ShouldDispense)
	assert.Equal(t, "state-1", result.StateID)
}

func TestThatMalformedStateMessagesAreDropped(t *testing.T) {
	reporter := &reporterMock{}
	l, published := newListenerForTest(t, reporter)

	l.handleStateMessage("dispensers/device-1/state", []byte(`{not json`))
	l.handleStateMessage("dispensers", []byte(`{"cup_placed":true,"sensor_reading":1}`))

	assert.Empty(t, reporter.reports)
	assert.Empty(t, *published)
}

func TestThatRejectedReportsAreNotAnswered(t *testing.T) {
	reporter := &reporterMock{err: apperrors.NotFound("Device %s not found", "device-9")}
	l, published := newListenerForTest(t, reporter)

	l.handleStateMessage("dispensers/device-9/state", []byte(`{"cup_placed":true,"sensor_reading":1}`))

	assert.Len(t, reporter.reports, 1)
	assert.Empty(t, *published)
}

func TestThatStateTopicMustContainAWildcard(t *testing.T) {
	_, err := NewListener(config.MQTTConfig{StateTopic: "dispensers/state"}, &reporterMock{}, logging.NewLogger())
	assert.Error(t, err)
}

func newListenerForTest(t *testing.T, reporter StateReporter) (*Listener, *map[string][]byte) {
	cfg := config.MQTTConfig{ClientID: "test", StateTopic: "dispensers/+/state"}

	l, err := NewListener(cfg, reporter, logging.NewLogger())
	require.NoError(t, err)

	published := map[string][]byte{}
	l.publish = func(topic string, payload []byte) error {
		published[topic] = payload
		return nil
	}

	return l, &published
}

type reporterMock struct {
	err       error
	deviceIDs []string
	reports   []states.Report
}

func (m *reporterMock) ReportState(ctx context.Context, deviceID string, report states.Report) (*states.ReportResult, error) {
	m.deviceIDs = append(m.deviceIDs, deviceID)
	m.reports = append(m.reports, report)

	if m.err != nil {
		return nil, m.err
	}

	amount := "1.0"
	return &states.ReportResult{
		StateID:        "state-1",
		CupPlaced:      *report.CupPlaced,
		SensorReading:  *report.SensorReading,
		ShouldDispense: true,
		DispenseAmount: &amount,
		Reason:         "dispense",
	}, nil
}
