package models

import "testing"

func TestProspectActionAllows(t *testing.T) {
	tests := []struct {
		action   string
		from     string
		expected bool
	}{
		// Review
		{ActionApprove, ProspectStatusPendingValidation, true},
		{ActionApprove, ProspectStatusConnectionPending, true},
		{ActionReject, ProspectStatusPendingValidation, true},
		{ActionReject, ProspectStatusConnectionPending, true},

		// Connection and messaging
		{ActionMarkConnected, ProspectStatusConnectionSent, true},
		{ActionGenerateMessage, ProspectStatusConnectionAccepted, true},
		{ActionSendMessage, ProspectStatusConnectionAccepted, true},

		// Override accepts any enumerated status
		{ActionManualStatusOverride, ProspectStatusCompleted, true},
		{ActionManualStatusOverride, ProspectStatusValidationFailed, true},
		{ActionManualStatusOverride, "nonexistent", false},

		// Missing edges
		{ActionApprove, ProspectStatusMessageSent, false},
		{ActionApprove, ProspectStatusConnectionSent, false},
		{ActionReject, ProspectStatusConnectionAccepted, false},
		{ActionMarkConnected, ProspectStatusPendingValidation, false},
		{ActionMarkConnected, ProspectStatusConnectionAccepted, false},
		{ActionGenerateMessage, ProspectStatusConnectionSent, false},
		{ActionSendMessage, ProspectStatusMessageSent, false},
		{ActionSendMessage, ProspectStatusPendingValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.action+"@"+tt.from, func(t *testing.T) {
			rule, ok := LookupAction(tt.action)
			if !ok {
				t.Fatalf("action %q missing from table", tt.action)
			}
			if got := rule.Allows(tt.from); got != tt.expected {
				t.Errorf("Allows(%s) = %v, want %v", tt.from, got, tt.expected)
			}
		})
	}
}

func TestLookupActionUnknown(t *testing.T) {
	for _, a := range []string{"", "delete", "APPROVE", "markconnected"} {
		if _, ok := LookupAction(a); ok {
			t.Errorf("LookupAction(%q) should fail", a)
		}
	}
}

func TestActionDestinations(t *testing.T) {
	want := map[string]string{
		ActionApprove:         ProspectStatusConnectionSent,
		ActionReject:          ProspectStatusValidationFailed,
		ActionMarkConnected:   ProspectStatusConnectionAccepted,
		ActionGenerateMessage: "",
		ActionSendMessage:     ProspectStatusMessageSent,
	}
	for action, to := range want {
		if got := ProspectActions[action].To; got != to {
			t.Errorf("%s -> %q, want %q", action, got, to)
		}
	}
}

func TestInitialProspectStatus(t *testing.T) {
	tests := []struct {
		name        string
		autoApprove bool
		score       float64
		expected    string
	}{
		{"auto approve high score", true, 0.75, ProspectStatusConnectionPending},
		{"auto approve at threshold", true, 0.7, ProspectStatusConnectionPending},
		{"auto approve low score", true, 0.65, ProspectStatusPendingValidation},
		{"manual review high score", false, 0.95, ProspectStatusPendingValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialProspectStatus(tt.autoApprove, tt.score, 0.7); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestTerminalAndMessageHolding(t *testing.T) {
	terminal := map[string]bool{
		ProspectStatusCompleted:        true,
		ProspectStatusFailed:           true,
		ProspectStatusValidationFailed: true,
	}
	for _, s := range AllProspectStatuses {
		if got := IsTerminalProspectStatus(s); got != terminal[s] {
			t.Errorf("IsTerminalProspectStatus(%s) = %v", s, got)
		}
	}
	if CanHoldMessage(ProspectStatusPendingValidation) || CanHoldMessage(ProspectStatusValidationFailed) {
		t.Error("pre-validation statuses must not hold a message")
	}
	if !CanHoldMessage(ProspectStatusConnectionAccepted) {
		t.Error("CONNECTION_ACCEPTED should hold a message")
	}
}
