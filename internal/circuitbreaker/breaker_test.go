package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("whatsapp", Config{FailureThreshold: 3, RecoveryTimeout: time.Hour, SuccessThreshold: 2})
	failing := func(context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), failing, nil)
	}

	assert.Equal(t, Open, b.State())
}

func TestBreaker_ExecuteSkipsOpWhenOpen(t *testing.T) {
	b := New("whatsapp", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") }, nil)
	require.Equal(t, Open, b.State())

	called := false
	err := b.Execute(context.Background(), func(context.Context) error { called = true; return nil }, nil)

	assert.False(t, called, "op must not run while breaker is open")
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_InvokesFallbackWhenOpen(t *testing.T) {
	b := New("whatsapp", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") }, nil)

	fallbackCalled := false
	err := b.Execute(context.Background(), func(context.Context) error { return nil }, func(context.Context) error {
		fallbackCalled = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, fallbackCalled)
}

func TestBreaker_HalfOpenClosesAfterConsecutiveSuccesses(t *testing.T) {
	b := New("whatsapp", Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") }, nil)
	require.Equal(t, Open, b.State())

	time.Sleep(5 * time.Millisecond)
	ok := func(context.Context) error { return nil }

	require.Equal(t, HalfOpen, b.State())
	_ = b.Execute(context.Background(), ok, nil)
	assert.Equal(t, HalfOpen, b.State())
	_ = b.Execute(context.Background(), ok, nil)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("whatsapp", Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") }, nil)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom again") }, nil)
	assert.Equal(t, Open, b.State())
}
