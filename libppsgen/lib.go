// Package implementing a wrapper around ppsgen's D-Bus API.
//
// It may be used by client applications needing to query the state of a
// running ppsgen service.
package libppsgen

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName    = "com.gitlab.ppsgen"
	objectPath = "/com/gitlab/ppsgen"
	iface      = "com.gitlab.ppsgen"
)

// Stats mirrors the props published by the service.
type Stats struct {
	WriteLatency    int64
	SchedulingError int64
	PulsesEmitted   uint64
	PulsesMissed    uint64
	Running         bool
}

func getDBusObj() (*dbus.BusObject, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("could not connect to d-bus: %v", err)
	}

	obj := conn.Object(busName, dbus.ObjectPath(objectPath))

	return &obj, nil
}

// GetStats reads the current calibration state and pulse counters from a
// running service.
func GetStats() (*Stats, error) {
	obj, err := getDBusObj()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	fields := []struct {
		prop string
		dest interface{}
	}{
		{"WriteLatency", &stats.WriteLatency},
		{"SchedulingError", &stats.SchedulingError},
		{"PulsesEmitted", &stats.PulsesEmitted},
		{"PulsesMissed", &stats.PulsesMissed},
		{"Running", &stats.Running},
	}
	for _, f := range fields {
		if err = (*obj).StoreProperty(iface+"."+f.prop, f.dest); err != nil {
			return nil, fmt.Errorf("error reading property %v: %v", f.prop, err)
		}
	}

	return stats, nil
}
