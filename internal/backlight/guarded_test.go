package backlight_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shini4i/ambient-backlight-daemon/internal/backlight"
	"github.com/shini4i/ambient-backlight-daemon/internal/backlight/mocks"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGuarded_PassesWritesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mock := mocks.NewMockBacklight(ctrl)
	mock.EXPECT().Set(120).Return(nil)
	mock.EXPECT().Get().Return(120, nil)

	g := backlight.NewGuarded(mock, 3, time.Minute)
	require.NoError(t, g.Set(120))

	level, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, 120, level)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuarded_OpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writeErr := errors.New("no such device")
	mock := mocks.NewMockBacklight(ctrl)
	mock.EXPECT().Set(gomock.Any()).Return(writeErr).Times(3)

	g := backlight.NewGuarded(mock, 3, time.Minute)
	for i := 0; i < 3; i++ {
		err := g.Set(100)
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	// Open breaker skips the device entirely.
	err := g.Set(100)
	require.Error(t, err)
	assert.ErrorIs(t, err, backlight.ErrWriteFailed)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestGuarded_SuccessResetsFailureCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writeErr := errors.New("busy")
	mock := mocks.NewMockBacklight(ctrl)
	gomock.InOrder(
		mock.EXPECT().Set(1).Return(writeErr),
		mock.EXPECT().Set(2).Return(writeErr),
		mock.EXPECT().Set(3).Return(nil),
		mock.EXPECT().Set(4).Return(writeErr),
		mock.EXPECT().Set(5).Return(writeErr),
	)

	g := backlight.NewGuarded(mock, 3, time.Minute)
	for level := 1; level <= 5; level++ {
		_ = g.Set(level)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuarded_HalfOpenAfterTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mock := mocks.NewMockBacklight(ctrl)
	gomock.InOrder(
		mock.EXPECT().Set(10).Return(errors.New("gone")),
		mock.EXPECT().Set(20).Return(nil),
	)

	g := backlight.NewGuarded(mock, 1, 20*time.Millisecond)
	require.Error(t, g.Set(10))
	require.Equal(t, gobreaker.StateOpen, g.State())

	time.Sleep(40 * time.Millisecond)

	require.NoError(t, g.Set(20))
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestNewGuarded_ClampsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mock := mocks.NewMockBacklight(ctrl)
	mock.EXPECT().Set(1).Return(errors.New("gone"))

	g := backlight.NewGuarded(mock, 0, time.Minute)
	require.Error(t, g.Set(1))
	assert.Equal(t, gobreaker.StateOpen, g.State())
}
