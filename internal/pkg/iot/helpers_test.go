package iot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMACAddressValidation(t *testing.T) {
	assert.True(t, ValidMACAddress("aa:bb:cc:dd:ee:ff"))
	assert.True(t, ValidMACAddress("AA-BB-CC-DD-EE-FF"))
	assert.False(t, ValidMACAddress("AA:BB:CC:DD:EE"))
	assert.False(t, ValidMACAddress("GG:BB:CC:DD:EE:FF"))
	assert.False(t, ValidMACAddress("AABBCCDDEEFF"))
}

func TestThatMACAddressIsNormalized(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:0D:EE:FF", NormalizeMACAddress("aa-bb-cc-0d-ee-ff"))
}

func TestSerialNumberValidation(t *testing.T) {
	assert.True(t, ValidSerialNumber("zn12345678"))
	assert.False(t, ValidSerialNumber("ZN123"))
	assert.False(t, ValidSerialNumber("ZN-1234567"))
	assert.Equal(t, "ZN12345678", NormalizeSerialNumber(" zn12345678 "))
}

func TestDispenseAmounts(t *testing.T) {
	assert.Equal(t, "5ml", DispenseAmount(TypeFishOil))
	assert.Equal(t, "1000 IU", DispenseAmount(TypeVitaminD))
	assert.Equal(t, "3ml", DispenseAmount(TypeKrillOil))
	assert.Equal(t, "5ml", DispenseAmount(TypeVegan))
	assert.Equal(t, "1 dose", DispenseAmount("omega_9"))
}

func TestEstimatedRemainingDoses(t *testing.T) {
	assert.Equal(t, 30, EstimatedRemainingDoses(TypeFishOil, 50))
	assert.Equal(t, 100, EstimatedRemainingDoses(TypeVitaminD, 100))
	assert.Equal(t, 13, EstimatedRemainingDoses(TypeKrillOil, 33))
	assert.Equal(t, 25, EstimatedRemainingDoses("unknown", 50))
	assert.Equal(t, 0, EstimatedRemainingDoses(TypeVegan, 0))
}

func TestLevelValidation(t *testing.T) {
	assert.True(t, ValidLevel(0))
	assert.True(t, ValidLevel(100))
	assert.False(t, ValidLevel(-1))
	assert.False(t, ValidLevel(101))
}

func TestThatTimestampsWithoutZoneAreUTC(t *testing.T) {
	expected := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	ts, err := ParseTimestamp("2024-03-01T12:30:00")
	assert.NoError(t, err)
	assert.True(t, expected.Equal(ts))

	ts, err = ParseTimestamp("2024-03-01T14:30:00+02:00")
	assert.NoError(t, err)
	assert.True(t, expected.Equal(ts))

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestSensorReadingValidation(t *testing.T) {
	for _, r := range []float64{0, 0.5, 12.34, 999.99, 100} {
		assert.True(t, ValidSensorReading(r), "%v should be valid", r)
	}

	for _, r := range []float64{-0.01, 1000, 999.991, 1.234} {
		assert.False(t, ValidSensorReading(r), "%v should be invalid", r)
	}
}
