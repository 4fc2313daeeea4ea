package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

func TestDispatchRunsHandlersInRegistrationOrder(t *testing.T) {
	r := New()
	var order []string

	r.RegisterFunc(session.TypeSessionEnded, func(context.Context, session.Event) error {
		order = append(order, "first")
		return nil
	})
	r.RegisterFunc(session.TypeSessionEnded, func(context.Context, session.Event) error {
		order = append(order, "second")
		return nil
	})
	r.RegisterFunc(session.TypeSessionEnded, func(context.Context, session.Event) error {
		order = append(order, "third")
		return nil
	})

	err := r.Dispatch(context.Background(), session.NewSessionEnded("r1", "op-1", "https://blobs/r1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatchStopsAtFirstError(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	var ran []string

	r.RegisterFunc(session.TypeSessionStarted, func(context.Context, session.Event) error {
		ran = append(ran, "first")
		return boom
	})
	r.RegisterFunc(session.TypeSessionStarted, func(context.Context, session.Event) error {
		ran = append(ran, "second")
		return nil
	})

	err := r.Dispatch(context.Background(), session.NewSessionStarted("r1", "op-1"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, ran)
}

func TestDispatchWithNoHandlersIsNoOp(t *testing.T) {
	r := New()
	err := r.Dispatch(context.Background(), session.NewSessionStarted("r1", "op-1"))
	assert.NoError(t, err)
}

func TestDispatchOnlyRunsMatchingType(t *testing.T) {
	r := New()
	var ran int
	r.RegisterFunc(session.TypeSessionEnded, func(context.Context, session.Event) error {
		ran++
		return nil
	})

	err := r.Dispatch(context.Background(), session.NewSessionStarted("r1", "op-1"))
	require.NoError(t, err)
	assert.Zero(t, ran)
}
