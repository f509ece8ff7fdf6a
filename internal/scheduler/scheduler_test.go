package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireOverduePayments(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func counterJob(name string, every time.Duration, runs *atomic.Int32) Job {
	return Job{Name: name, Every: every, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Register(counterJob("count", 10*time.Millisecond, &runs)))

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Register(counterJob("count", 5*time.Millisecond, &runs)))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_SurvivesErrorsAndPanics(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "flaky", Every: 5 * time.Millisecond, Run: func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return stderrors.New("failed")
	}}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32

	assert.Error(t, s.Register(counterJob("zero", 0, &runs)))
	assert.Error(t, s.Register(Job{Name: "nil-run", Every: time.Second}))
	require.NoError(t, s.Register(counterJob("dup", time.Second, &runs)))
	assert.Error(t, s.Register(counterJob("dup", time.Second, &runs)))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, defaultJobTimeout, jobs[0].Timeout)
}

func TestExpirePaymentsJob(t *testing.T) {
	expirer := &mockExpirer{}
	expirer.On("ExpireOverduePayments", mock.Anything).Return(2, nil).Once()
	expirer.On("ExpireOverduePayments", mock.Anything).Return(0, stderrors.New("db down")).Once()

	job := ExpirePaymentsJob(expirer, time.Minute, nil)
	assert.Equal(t, JobExpirePayments, job.Name)
	assert.Equal(t, time.Minute, job.Every)

	require.NoError(t, job.Run(context.Background()))
	assert.EqualError(t, job.Run(context.Background()), "db down")
	expirer.AssertExpectations(t)
}
