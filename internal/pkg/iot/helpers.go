//Package iot contains the rules that follow from the physical dispenser hardware
package iot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

//Supported dispenser types
const (
	TypeFishOil  = "fish_oil"
	TypeVitaminD = "vitamin_d"
	TypeKrillOil = "krill_oil"
	TypeVegan    = "vegan"
)

const (
	//LowBatteryThreshold is the battery level at or below which an alert is raised
	LowBatteryThreshold = 20
	//LowSupplementThreshold is the supplement level at or below which an alert is raised
	LowSupplementThreshold = 20
	//DefaultDispenseAmount is used for device types we do not know the dosage of
	DefaultDispenseAmount = "1 dose"
	//MaxSensorReading is the largest value a cup sensor can report
	MaxSensorReading = 999.99
)

var (
	macAddressPattern   = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)
	serialNumberPattern = regexp.MustCompile(`^[A-Z0-9]{8,100}$`)

	dispenseAmounts = map[string]string{
		TypeFishOil:  "5ml",
		TypeVitaminD: "1000 IU",
		TypeKrillOil: "3ml",
		TypeVegan:    "5ml",
	}

	dosesPerRefill = map[string]int{
		TypeFishOil:  60,
		TypeVitaminD: 100,
		TypeKrillOil: 40,
		TypeVegan:    60,
	}
)

//IsKnownDeviceType reports whether t is one of the supported dispenser types
func IsKnownDeviceType(t string) bool {
	_, ok := dispenseAmounts[t]
	return ok
}

//ValidMACAddress accepts colon or dash separated hex octets in any case
func ValidMACAddress(mac string) bool {
	return macAddressPattern.MatchString(mac)
}

//NormalizeMACAddress returns the upper case, colon separated form
func NormalizeMACAddress(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
}

//NormalizeSerialNumber upper cases the serial number
func NormalizeSerialNumber(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

//ValidSerialNumber checks the normalized form of a serial number
func ValidSerialNumber(serial string) bool {
	return serialNumberPattern.MatchString(NormalizeSerialNumber(serial))
}

//ValidLevel checks a battery or supplement percentage
func ValidLevel(level int) bool {
	return level >= 0 && level <= 100
}

//ValidSensorReading checks that a reading is in range and has at most two decimals
func ValidSensorReading(reading float64) bool {
	if reading < 0 || reading > MaxSensorReading {
		return false
	}

	formatted := strconv.FormatFloat(reading, 'f', -1, 64)
	if dot := strings.IndexByte(formatted, '.'); dot >= 0 {
		return len(formatted)-dot-1 <= 2
	}

	return true
}

//DispenseAmount looks up how much a single dispense of the given device type releases
func DispenseAmount(deviceType string) string {
	if amount, ok := dispenseAmounts[deviceType]; ok {
		return amount
	}
	return DefaultDispenseAmount
}

//EstimatedRemainingDoses converts a supplement level into a number of doses left
func EstimatedRemainingDoses(deviceType string, supplementLevel int) int {
	capacity, ok := dosesPerRefill[deviceType]
	if !ok {
		capacity = 50
	}
	return capacity * supplementLevel / 100
}

//naiveTimestampLayout is how devices without a timezone report time
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

//ParseTimestamp accepts RFC 3339 as well as timestamps without a zone, which are taken to be UTC
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(naiveTimestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected ISO 8601", value)
	}

	return t.UTC(), nil
}
