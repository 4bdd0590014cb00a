package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadStatus_Transitions(t *testing.T) {
	tests := []struct {
		from LeadStatus
		to   LeadStatus
		ok   bool
	}{
		{LeadStatusNew, LeadStatusReady, true},
		{LeadStatusNew, LeadStatusSkipped, true},
		{LeadStatusReady, LeadStatusContacted, true},
		{LeadStatusReady, LeadStatusSkipped, true},
		{LeadStatusReady, LeadStatusFailed, true},
		{LeadStatusFailed, LeadStatusContacted, true},
		{LeadStatusContacted, LeadStatusReplied, true},
		{LeadStatusContacted, LeadStatusSkipped, false},
		{LeadStatusSkipped, LeadStatusContacted, false},
		{LeadStatusReplied, LeadStatusContacted, false},
		{LeadStatusNew, LeadStatusContacted, false},
		{LeadStatusReady, LeadStatusReplied, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))

			next, err := tt.from.Transition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, next)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				assert.Equal(t, tt.from, next)
			}
		})
	}
}

func TestLeadStatus_Valid(t *testing.T) {
	assert.True(t, LeadStatusReady.Valid())
	assert.True(t, LeadStatusFailed.Valid())
	assert.False(t, LeadStatus("archived").Valid())
}

func TestLead_PrimaryContact(t *testing.T) {
	email := "ada@acme.io"
	blank := " "
	lead := Lead{Contacts: []Contact{
		{Name: "No Email"},
		{Name: "Blank", Email: &blank},
		{Name: "Ada", Email: &email},
	}}

	c, ok := lead.PrimaryContact()
	assert.True(t, ok)
	assert.Equal(t, "Ada", c.Name)

	_, ok = (&Lead{Contacts: []Contact{{Name: "x"}}}).PrimaryContact()
	assert.False(t, ok)
}
