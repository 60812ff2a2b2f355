package housekeeping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPurger struct{ mock.Mock }

func (m *mockPurger) Purge(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewService_InvalidSchedule(t *testing.T) {
	_, err := NewService(&mockPurger{}, "every now and then")
	assert.Error(t, err)
}

func TestRunOnce_CallsPurger(t *testing.T) {
	p := &mockPurger{}
	p.On("Purge", mock.Anything).Return(3, nil).Once()
	s, err := NewService(p, "@every 1h")
	require.NoError(t, err)

	s.RunOnce()

	p.AssertExpectations(t)
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	p := &mockPurger{}
	p.On("Purge", mock.Anything).Return(0, errors.New("dynamo down")).Once()
	s, err := NewService(p, "@every 1h")
	require.NoError(t, err)

	assert.NotPanics(t, s.RunOnce)
	p.AssertExpectations(t)
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	p := &mockPurger{}
	called := make(chan struct{}, 10)
	p.On("Purge", mock.Anything).Return(0, nil).Run(func(mock.Arguments) { called <- struct{}{} })
	s, err := NewService(p, "@every 1s")
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("purge did not run")
	}
}
