package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
)

func TestDrift(t *testing.T) {
	expected := []auth.Grant{
		{Resource: auth.ResourcePatient, Action: auth.ActionRead},
		{Resource: auth.ResourcePatient, Action: auth.ActionCreate},
	}
	current := []auth.Grant{
		{Resource: auth.ResourcePatient, Action: auth.ActionRead},
		{Resource: auth.ResourceAuditLog, Action: auth.ActionDelete},
	}

	missing, extra := drift(expected, current)
	assert.Equal(t, []string{"create_patient"}, missing)
	assert.Equal(t, []string{"delete_audit_log"}, extra)

	missing, extra = drift(expected, expected)
	assert.Empty(t, missing)
	assert.Empty(t, extra)
}
