package domain

import "testing"

func TestOrder_IsOpen(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"PENDING_SUBMIT", StatePendingSubmit, true},
		{"WORKING", StateWorking, true},
		{"CANCEL_REQUESTED", StateCancelRequested, true},
		{"FILLED", StateFilled, false},
		{"CANCELLED", StateCancelled, false},
		{"REJECTED", StateRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{State: tt.state}
			if got := o.IsOpen(); got != tt.want {
				t.Errorf("Order.IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPurpose_IsExit(t *testing.T) {
	if PurposeEntry.IsExit() {
		t.Error("entry must not count as exit")
	}
	if !PurposeTakeProfit.IsExit() || !PurposeStopLoss.IsExit() {
		t.Error("take-profit and stop-loss are exits")
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Error("Opposite() broken")
	}
}
