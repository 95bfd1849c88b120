// SPDX-License-Identifier: GPL-3.0-only

// Package dbus exposes the adaptive backlight state as a read-only D-Bus service.
package dbus

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/ambient-backlight-daemon/internal/controller"
)

// ErrUnknownBus is returned when Start is asked for a bus other than system or session.
var ErrUnknownBus = errors.New("unknown bus")

const (
	// BusSystem selects the system bus.
	BusSystem = "system"

	// BusSession selects the session bus.
	BusSession = "session"
)

const (
	// brightnessSignalInterval is the minimum spacing of BrightnessChanged signals.
	// A ramp changes brightness up to ten times a second.
	brightnessSignalInterval = 250 * time.Millisecond

	// brightnessSignalBurst is the maximum burst size for BrightnessChanged signals.
	brightnessSignalBurst = 2
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.shini4i.AmbientBacklight"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/shini4i/AmbientBacklight"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.shini4i.AmbientBacklight"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="GetStatus">
      <arg name="status" type="(iuuib)" direction="out"/>
    </method>
    <method name="GetLux">
      <arg name="lux" type="i" direction="out"/>
    </method>
    <method name="GetBrightness">
      <arg name="brightness" type="u" direction="out"/>
    </method>
    <method name="GetLevel">
      <arg name="level" type="i" direction="out"/>
    </method>
    <method name="GetNightMode">
      <arg name="night" type="b" direction="out"/>
    </method>
    <signal name="BrightnessChanged">
      <arg name="brightness" type="u"/>
      <arg name="level" type="i"/>
    </signal>
    <signal name="NightModeChanged">
      <arg name="night" type="b"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// StatusProvider supplies the state published by the service.
type StatusProvider interface {
	Status() controller.Status
}

// StatusInfo is the controller state returned via D-Bus.
// Serializes to D-Bus type (iuuib).
type StatusInfo struct {
	Lux               int32
	Brightness        uint32
	DesiredBrightness uint32
	Level             int32
	NightMode         bool
}

// signalEmitter is the part of *dbus.Conn used for signals.
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Server implements the D-Bus status service.
//
// Thread safety:
//   - The connMu mutex protects the conn and emitter fields.
//   - Signal methods are called from the controller goroutine while
//     method calls arrive on godbus goroutines; both only read shared state.
type Server struct {
	conn          *dbus.Conn
	emitter       signalEmitter
	connMu        sync.RWMutex // Protects conn and emitter
	provider      StatusProvider
	signalLimiter *rate.Limiter
}

// Verify Server implements the controller.Notifier interface.
var _ controller.Notifier = (*Server)(nil)

// NewServer creates a new D-Bus server backed by the given status provider.
func NewServer(provider StatusProvider) *Server {
	return &Server{
		provider:      provider,
		signalLimiter: rate.NewLimiter(rate.Every(brightnessSignalInterval), brightnessSignalBurst),
	}
}

// Start connects to the named bus ("system" or "session") and exports the service.
func (s *Server) Start(bus string) error {
	conn, err := connect(bus)
	if err != nil {
		return err
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	err = conn.Export(s, ObjectPath, InterfaceName)
	if err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.connMu.Lock()
	s.conn = conn
	s.emitter = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Str("bus", bus).Msg("D-Bus service started")
	return nil
}

func connect(bus string) (*dbus.Conn, error) {
	switch bus {
	case BusSystem:
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to system bus: %w", err)
		}
		return conn, nil
	case BusSession:
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBus, bus)
	}
}

// Stop disconnects from the bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.emitter = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// GetStatus returns the full controller state.
func (s *Server) GetStatus() (StatusInfo, *dbus.Error) {
	status := s.provider.Status()
	info := StatusInfo{
		Lux:               clampInt32(status.Lux),
		Brightness:        toPercent(status.Percent),
		DesiredBrightness: toPercent(status.Desired),
		Level:             clampInt32(status.Level),
		NightMode:         status.Night,
	}

	log.Debug().
		Int32("lux", info.Lux).
		Uint32("brightness", info.Brightness).
		Bool("night", info.NightMode).
		Msg("Status requested")
	return info, nil
}

// GetLux returns the averaged ambient light.
func (s *Server) GetLux() (int32, *dbus.Error) {
	return clampInt32(s.provider.Status().Lux), nil
}

// GetBrightness returns the current brightness as a percentage (0-100).
func (s *Server) GetBrightness() (uint32, *dbus.Error) {
	return toPercent(s.provider.Status().Percent), nil
}

// GetLevel returns the raw backlight register value last written.
func (s *Server) GetLevel() (int32, *dbus.Error) {
	return clampInt32(s.provider.Status().Level), nil
}

// GetNightMode reports whether night mode is active.
func (s *Server) GetNightMode() (bool, *dbus.Error) {
	return s.provider.Status().Night, nil
}

// EmitBrightnessChanged emits the BrightnessChanged signal. Signals beyond the rate
// limit are dropped; clients needing the exact value call GetStatus.
func (s *Server) EmitBrightnessChanged(percent float64, level int) {
	s.connMu.RLock()
	emitter := s.emitter
	s.connMu.RUnlock()

	if emitter == nil {
		return
	}

	if !s.signalLimiter.Allow() {
		return
	}

	err := emitter.Emit(ObjectPath, InterfaceName+".BrightnessChanged", toPercent(percent), clampInt32(level))
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit BrightnessChanged signal")
	}
}

// EmitNightModeChanged emits the NightModeChanged signal.
func (s *Server) EmitNightModeChanged(night bool) {
	s.connMu.RLock()
	emitter := s.emitter
	s.connMu.RUnlock()

	if emitter == nil {
		return
	}

	err := emitter.Emit(ObjectPath, InterfaceName+".NightModeChanged", night)
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit NightModeChanged signal")
	}
}

// toPercent converts a 0.0-1.0 fraction to a rounded 0-100 percentage.
func toPercent(fraction float64) uint32 {
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return 100
	}
	// #nosec G115 -- fraction is clamped to 0-1, result is 0-100
	return uint32(math.Round(fraction * 100))
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
