package dispense

import (
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func readyDevice(deviceType string) models.Device {
	return models.Device{
		Type:            deviceType,
		IsActive:        true,
		IsConnected:     true,
		SupplementLevel: 80,
	}
}

func TestThatReadyDeviceDispenses(t *testing.T) {
	d := Decide(readyDevice("fish_oil"), true, nil, now)

	assert.True(t, d.ShouldDispense)
	assert.Equal(t, ReasonReady, d.Reason)
	assert.Equal(t, "5ml", d.Amount)
}

func TestThatAmountFollowsDeviceType(t *testing.T) {
	assert.Equal(t, "1000 IU", Decide(readyDevice("vitamin_d"), true, nil, now).Amount)
	assert.Equal(t, "3ml", Decide(readyDevice("krill_oil"), true, nil, now).Amount)
	assert.Equal(t, "1 dose", Decide(readyDevice("mystery"), true, nil, now).Amount)
}

func TestThatRejectionReasonsAreCheckedInOrder(t *testing.T) {
	// every condition fails, the cup wins
	broken := models.Device{Type: "vegan"}
	assert.Equal(t, ReasonCupNotPlaced, Decide(broken, false, nil, now).Reason)

	assert.Equal(t, ReasonDeviceInactive, Decide(broken, true, nil, now).Reason)

	broken.IsActive = true
	assert.Equal(t, ReasonDeviceDisconnected, Decide(broken, true, nil, now).Reason)

	broken.IsConnected = true
	assert.Equal(t, ReasonSupplementEmpty, Decide(broken, true, nil, now).Reason)

	broken.SupplementLevel = 1
	recent := now.Add(-5 * time.Second)
	assert.Equal(t, ReasonRecentDispense, Decide(broken, true, &recent, now).Reason)
}

func TestThatRejectedDecisionsCarryNoAmount(t *testing.T) {
	d := Decide(readyDevice("fish_oil"), false, nil, now)

	assert.False(t, d.ShouldDispense)
	assert.Empty(t, d.Amount)
}

func TestThrottleBoundary(t *testing.T) {
	device := readyDevice("fish_oil")

	justBefore := now.Add(-MinInterval + time.Millisecond)
	assert.Equal(t, ReasonRecentDispense, Decide(device, true, &justBefore, now).Reason)

	exactly := now.Add(-MinInterval)
	assert.True(t, Decide(device, true, &exactly, now).ShouldDispense)

	longAgo := now.Add(-time.Hour)
	assert.True(t, Decide(device, true, &longAgo, now).ShouldDispense)
}
