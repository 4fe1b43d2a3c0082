package ppsgen

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"gitlab.com/ppsgen/ppsgen/timing"
)

const (
	BusName       = "com.gitlab.ppsgen"
	ObjectPath    = "/com/gitlab/ppsgen"
	InterfaceName = "com.gitlab.ppsgen"
)

// ServerHandle exposes the engine's calibration state and pulse counters
// over D-Bus, and emits a signal for every missed edge. It is the
// diagnostic surface of the service; nothing on the bus can influence the
// engine's timing.
type ServerHandle struct {
	conn   *dbus.Conn
	prop   *prop.Properties
	engine *timing.Engine
}

// Create a new D-Bus server instance publishing the given engine's stats.
func NewDbusServer(engine *timing.Engine) (*ServerHandle, error) {
	handle := ServerHandle{
		engine: engine,
	}

	if err := handle.start(); err != nil {
		return nil, fmt.Errorf("could not start D-Bus server: %v", err)
	}

	return &handle, nil
}

func (handle *ServerHandle) start() (err error) {
	handle.conn, err = dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("could not connect to system D-Bus: %v", err)
	}

	stats := handle.engine.Stats()

	// Read-only props mirroring the engine's stats.
	propsSpec := map[string]map[string]*prop.Prop{
		InterfaceName: {
			"WriteLatency": {
				Value:    stats.WriteLatency,
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			"SchedulingError": {
				Value:    stats.SchedulingError,
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			"PulsesEmitted": {
				Value:    stats.Emitted,
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			"PulsesMissed": {
				Value:    stats.Missed,
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			"Running": {
				Value:    stats.Running,
				Writable: false,
				Emit:     prop.EmitFalse,
			},
		},
	}

	handle.prop, err = prop.Export(handle.conn, ObjectPath, propsSpec)
	if err != nil {
		return fmt.Errorf("failed to export D-Bus props: %v", err)
	}

	// Declare our signal (for introspection only).
	pulseMissed := introspect.Signal{
		Name: "PulseMissed",
		Args: []introspect.Arg{
			{
				Name: "NsecOffset",
				Type: "x",
			},
		},
	}

	ppsgenInterface := introspect.Interface{
		Name:       InterfaceName,
		Signals:    []introspect.Signal{pulseMissed},
		Properties: handle.prop.Introspection(InterfaceName),
	}

	// Declare our whole interface (for introspection only).
	n := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData, // introspection interface
			prop.IntrospectData,       // prop read interface
			ppsgenInterface,           // ppsgen interface
		},
	}

	err = handle.conn.Export(
		introspect.NewIntrospectable(n),
		ObjectPath,
		"org.freedesktop.DBus.Introspectable",
	)
	if err != nil {
		return fmt.Errorf("failed to export introspection data: %v", err)
	}

	reply, err := handle.conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to register dbus name: %v", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("can't register D-Bus name: name already taken")
	}

	log.Printf("Listening on D-Bus `%v`...", BusName)
	return nil
}

// Refresh republishes the engine's current stats. Called periodically by
// the service, never from the timing callback.
func (handle *ServerHandle) Refresh() {
	stats := handle.engine.Stats()
	handle.prop.SetMust(InterfaceName, "WriteLatency", stats.WriteLatency)
	handle.prop.SetMust(InterfaceName, "SchedulingError", stats.SchedulingError)
	handle.prop.SetMust(InterfaceName, "PulsesEmitted", stats.Emitted)
	handle.prop.SetMust(InterfaceName, "PulsesMissed", stats.Missed)
	handle.prop.SetMust(InterfaceName, "Running", stats.Running)
}

// NotifyMiss emits the PulseMissed signal with the nanosecond offset
// observed on the late wake-up. The emit happens off the timing callback
// so bus traffic never delays re-arming.
func (handle *ServerHandle) NotifyMiss(observed timing.Timestamp) {
	go func() {
		err := handle.conn.Emit(ObjectPath, InterfaceName+".PulseMissed", observed.Nsec)
		if err != nil {
			log.Printf("couldn't emit signal: %v", err)
		}
	}()
}

func (handle *ServerHandle) Close() error {
	return handle.conn.Close()
}
