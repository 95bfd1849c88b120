package nightmode_test

import (
	"testing"

	"github.com/shini4i/ambient-backlight-daemon/internal/nightmode"
	"github.com/stretchr/testify/assert"
)

const (
	onLux  = 20
	offLux = 40
)

func TestSwitch_Evaluate(t *testing.T) {
	tests := []struct {
		name          string
		startNight    bool
		lux           int
		expectNight   bool
		expectChanged bool
	}{
		{name: "day stays day above off threshold", startNight: false, lux: 500, expectNight: false},
		{name: "day goes night one below on threshold", startNight: false, lux: onLux - 1, expectNight: true, expectChanged: true},
		{name: "day stays day exactly at on threshold", startNight: false, lux: onLux, expectNight: false},
		{name: "day stays day inside band", startNight: false, lux: 30, expectNight: false},
		{name: "day goes night in darkness", startNight: false, lux: 0, expectNight: true, expectChanged: true},
		{name: "night goes day one above off threshold", startNight: true, lux: offLux + 1, expectNight: false, expectChanged: true},
		{name: "night stays night exactly at off threshold", startNight: true, lux: offLux, expectNight: true},
		{name: "night stays night inside band", startNight: true, lux: 30, expectNight: true},
		{name: "night stays night in darkness", startNight: true, lux: 0, expectNight: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := nightmode.NewSwitch(onLux, offLux, tt.startNight)
			night, changed := s.Evaluate(tt.lux)
			assert.Equal(t, tt.expectNight, night)
			assert.Equal(t, tt.expectChanged, changed)
			assert.Equal(t, tt.expectNight, s.Night())
		})
	}
}

func TestSwitch_NoiseInsideBandNeverToggles(t *testing.T) {
	for _, start := range []bool{false, true} {
		s := nightmode.NewSwitch(onLux, offLux, start)
		for i := 0; i < 1000; i++ {
			lux := onLux + 1
			if i%2 == 1 {
				lux = offLux - 1
			}
			night, changed := s.Evaluate(lux)
			assert.False(t, changed)
			assert.Equal(t, start, night)
		}
	}
}

func TestSwitch_FullCycle(t *testing.T) {
	s := nightmode.NewSwitch(onLux, offLux, false)

	readings := []struct {
		lux   int
		night bool
	}{
		{lux: 100, night: false},
		{lux: 25, night: false},
		{lux: 19, night: true},
		{lux: 35, night: true},
		{lux: 40, night: true},
		{lux: 41, night: false},
		{lux: 20, night: false},
		{lux: 5, night: true},
	}

	for _, r := range readings {
		night, _ := s.Evaluate(r.lux)
		assert.Equal(t, r.night, night, "after %d lux", r.lux)
	}
}

func TestSwitch_Set(t *testing.T) {
	s := nightmode.NewSwitch(onLux, offLux, false)
	s.Set(true)
	assert.True(t, s.Night())
	assert.Equal(t, "night", s.String())

	s.Set(false)
	assert.Equal(t, "day", s.String())
}

func TestModeName(t *testing.T) {
	assert.Equal(t, "night", nightmode.ModeName(true))
	assert.Equal(t, "day", nightmode.ModeName(false))
}
