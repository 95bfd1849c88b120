// Package udev watches the backlight subsystem via netlink/udev events, so the daemon
// notices when the display driver re-creates or resets the backlight device.
package udev

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog/log"
)

const (
	// netlinkBufferSize is the receive buffer size for the netlink socket.
	// Every uevent on the system lands in this buffer before filtering, so a burst of
	// unrelated hot-plug activity can still overflow a small one.
	netlinkBufferSize = 512 * 1024 // 512 KB
)

// BacklightSubsystem is the udev subsystem of display backlight devices.
const BacklightSubsystem = "backlight"

// EventType represents the type of device event.
type EventType int

const (
	// EventAdd indicates the backlight device appeared.
	EventAdd EventType = iota
	// EventChange indicates the driver reported a change of the device.
	EventChange
)

// String returns the udev action name of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	default:
		return "unknown"
	}
}

// Event represents a backlight device event.
type Event struct {
	Type   EventType
	Device string
}

// EventHandler is called when a backlight event occurs.
type EventHandler func(event Event)

// RecoveryHandler is called when the monitor recovers from an error condition
// (e.g., netlink buffer overflow) after which events may have been lost.
type RecoveryHandler func()

// Monitor watches for add/change events of one backlight device.
type Monitor struct {
	device          string
	conn            *netlink.UEventConn
	handler         EventHandler
	recoveryHandler RecoveryHandler
	quit            chan struct{}
	stopped         bool
	mu              sync.Mutex
}

// NewMonitor creates a new udev monitor for the named backlight device
// (e.g. "rpi_backlight") with the given event handler.
func NewMonitor(device string, handler EventHandler) *Monitor {
	return &Monitor{
		device:  device,
		handler: handler,
	}
}

// SetRecoveryHandler sets the handler called when the monitor recovers from errors.
func (m *Monitor) SetRecoveryHandler(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryHandler = handler
}

// Start begins monitoring for device events.
// This method is non-blocking; events are processed in a background goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("monitor already started")
	}

	m.conn = &netlink.UEventConn{}
	if err := m.conn.Connect(netlink.UdevEvent); err != nil {
		m.conn = nil
		return fmt.Errorf("failed to connect to netlink: %w", err)
	}

	if err := setSocketBufferSize(m.conn.Fd, netlinkBufferSize); err != nil {
		log.Warn().Err(err).Int("size", netlinkBufferSize).Msg("Failed to set netlink buffer size")
		// Continue anyway - the default buffer may still work for most cases
	} else {
		log.Debug().Int("size", netlinkBufferSize).Msg("Netlink socket buffer size configured")
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.createMatcher()

	m.quit = m.conn.Monitor(queue, errs, matcher)
	m.stopped = false

	go m.processEvents(queue, errs)

	log.Info().Str("device", m.device).Msg("udev monitor started")
	return nil
}

// Stop stops the monitor and releases resources.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.stopped {
		return nil
	}

	m.stopped = true

	// Signal the monitor goroutine to stop
	select {
	case m.quit <- struct{}{}:
	default:
	}

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close netlink connection: %w", err)
	}

	m.conn = nil
	log.Info().Msg("udev monitor stopped")
	return nil
}

// createMatcher creates a matcher for add/change events of the configured backlight device.
func (m *Monitor) createMatcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}

	addAction := "add"
	changeAction := "change"

	// DEVPATH ends in /backlight/<device>; anchored so "rpi_backlight2" does not match "rpi_backlight".
	env := map[string]string{
		"SUBSYSTEM": "^" + BacklightSubsystem + "$",
		"DEVPATH":   "/" + BacklightSubsystem + "/" + regexp.QuoteMeta(m.device) + "$",
	}

	rules.AddRule(netlink.RuleDefinition{
		Action: &addAction,
		Env:    env,
	})

	rules.AddRule(netlink.RuleDefinition{
		Action: &changeAction,
		Env:    env,
	})

	return rules
}

// processEvents handles incoming udev events.
func (m *Monitor) processEvents(queue chan netlink.UEvent, errs chan error) {
	for {
		select {
		case event, ok := <-queue:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.mu.Lock()
			stopped := m.stopped
			recoveryHandler := m.recoveryHandler
			m.mu.Unlock()
			if stopped {
				return
			}

			// Events may have been dropped on overflow; let the caller resynchronise.
			if isBufferOverflowError(err) {
				log.Warn().Msg("Netlink buffer overflow detected, triggering recovery")
				if recoveryHandler != nil {
					go recoveryHandler()
				}
				continue
			}

			log.Error().Err(err).Msg("udev monitor error")
		}
	}
}

// setSocketBufferSize sets the receive buffer size for a socket.
// It first tries SO_RCVBUFFORCE (requires CAP_NET_ADMIN), then falls back to SO_RCVBUF.
func setSocketBufferSize(fd int, size int) error {
	err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUFFORCE, size)
	if err == nil {
		return nil
	}

	// SO_RCVBUF is capped by the net.core.rmem_max sysctl
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

// isBufferOverflowError checks if the error is a netlink buffer overflow (ENOBUFS).
func isBufferOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return true
	}
	// The udev library does not always wrap the errno
	return strings.Contains(strings.ToLower(err.Error()), "no buffer space available")
}

// handleEvent processes a single udev event.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	device := path.Base(uevent.KObj)
	if device != m.device {
		return
	}

	var eventType EventType
	switch uevent.Action {
	case netlink.ADD:
		eventType = EventAdd
	case netlink.CHANGE:
		eventType = EventChange
	default:
		return
	}

	log.Info().
		Str("action", string(uevent.Action)).
		Str("devpath", uevent.KObj).
		Msg("Backlight device event")

	if m.handler != nil {
		m.handler(Event{Type: eventType, Device: device})
	}
}
