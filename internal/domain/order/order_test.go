package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mucyo/paypack-orders/internal/domain/order"
)

func TestNew_Valid(t *testing.T) {
	o, err := order.New(500, "0788000000")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(500), o.Amount)
	assert.Equal(t, "0788000000", o.CustomerPhone)
	assert.Nil(t, o.PaypackRef)
	assert.Nil(t, o.CompletedAt)
}

func TestNew_InvalidAmount(t *testing.T) {
	_, err := order.New(0, "0788000000")
	assert.Error(t, err)

	_, err = order.New(-500, "0788000000")
	assert.Error(t, err)
}

func TestNew_ShortPhone(t *testing.T) {
	_, err := order.New(500, "078800")
	assert.Error(t, err)
}

// --- State Machine Tests ---

func newPendingOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.New(1000, "0788000000")
	require.NoError(t, err)
	return o
}

func newProcessingOrder(t *testing.T) *order.Order {
	t.Helper()
	o := newPendingOrder(t)
	require.NoError(t, o.MarkProcessing("ref-123"))
	return o
}

func TestStateMachine_PendingToProcessing(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.MarkProcessing("abc123"))
	assert.Equal(t, order.StatusProcessing, o.Status)
	require.NotNil(t, o.PaypackRef)
	assert.Equal(t, "abc123", *o.PaypackRef)
}

func TestStateMachine_ProcessingToCompleted(t *testing.T) {
	o := newProcessingOrder(t)
	require.NoError(t, o.MarkCompleted())
	assert.Equal(t, order.StatusCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)
	assert.True(t, o.IsTerminal())
}

func TestStateMachine_ProcessingToFailed(t *testing.T) {
	o := newProcessingOrder(t)
	require.NoError(t, o.MarkFailed())
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.NotNil(t, o.CompletedAt)
	assert.True(t, o.IsTerminal())
}

func TestStateMachine_PendingCannotComplete(t *testing.T) {
	o := newPendingOrder(t)
	assert.Error(t, o.MarkCompleted())
	assert.Error(t, o.MarkFailed())
	assert.Equal(t, order.StatusPending, o.Status)
}

func TestStateMachine_TerminalStatesFrozen(t *testing.T) {
	completed := newProcessingOrder(t)
	require.NoError(t, completed.MarkCompleted())
	assert.Error(t, completed.MarkFailed())
	assert.Error(t, completed.TransitionTo(order.StatusProcessing))
	assert.Equal(t, order.StatusCompleted, completed.Status)

	failed := newProcessingOrder(t)
	require.NoError(t, failed.MarkFailed())
	assert.Error(t, failed.MarkCompleted())
	assert.Equal(t, order.StatusFailed, failed.Status)
}

func TestMarkProcessing_EmptyRef(t *testing.T) {
	o := newPendingOrder(t)
	assert.Error(t, o.MarkProcessing(""))
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Nil(t, o.PaypackRef)
}

func TestMarkProcessing_RefSetOnce(t *testing.T) {
	o := newProcessingOrder(t)
	err := o.MarkProcessing("another-ref")
	assert.Error(t, err)
	assert.Equal(t, "ref-123", *o.PaypackRef)
}

func TestCanTransitionTo_Matrix(t *testing.T) {
	tests := []struct {
		from    order.Status
		to      order.Status
		allowed bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusPending, order.StatusCompleted, false},
		{order.StatusPending, order.StatusFailed, false},
		{order.StatusProcessing, order.StatusCompleted, true},
		{order.StatusProcessing, order.StatusFailed, true},
		{order.StatusProcessing, order.StatusPending, false},
		{order.StatusCompleted, order.StatusFailed, false},
		{order.StatusCompleted, order.StatusProcessing, false},
		{order.StatusFailed, order.StatusCompleted, false},
		{order.StatusFailed, order.StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			o := newPendingOrder(t)
			o.Status = tt.from
			assert.Equal(t, tt.allowed, o.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusFromWebhook(t *testing.T) {
	tests := []struct {
		reported string
		want     order.Status
		final    bool
	}{
		{"successful", order.StatusCompleted, true},
		{"SUCCESSFUL", order.StatusCompleted, true},
		{"Successful", order.StatusCompleted, true},
		{"failed", order.StatusFailed, true},
		{"FAILED", order.StatusFailed, true},
		{"pending", "", false},
		{"processing", "", false},
		{"", "", false},
		{"unknown-status", "", false},
	}

	for _, tt := range tests {
		t.Run("reported_"+tt.reported, func(t *testing.T) {
			got, final := order.StatusFromWebhook(tt.reported)
			assert.Equal(t, tt.final, final)
			if tt.final {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
