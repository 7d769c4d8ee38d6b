package rgpd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/config"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/retention"
)

func newPurgeFlags(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "purge"}
	cmd.Flags().IntVar(&notificationsDays, "notifications-days", 90, "")
	cmd.Flags().IntVar(&smsDays, "sms-days", 180, "")
	cmd.Flags().IntVar(&auditDays, "audit-days", 365, "")
	cmd.Flags().BoolVar(&includeAudit, "include-audit", false, "")
	return cmd
}

func TestWindows_ConfigUnlessFlagSet(t *testing.T) {
	rc := config.RetentionConfig{NotificationsDays: 30, SMSDays: 60, AuditDays: 730}

	cmd := newPurgeFlags(t)
	assert.Equal(t, retention.PurgeWindows{NotificationsDays: 30, SMSDays: 60, AuditDays: 730}, windows(cmd, rc))

	cmd = newPurgeFlags(t)
	require.NoError(t, cmd.Flags().Parse([]string{"--sms-days", "0", "--include-audit"}))
	assert.Equal(t, retention.PurgeWindows{
		NotificationsDays: 30,
		SMSDays:           0,
		AuditDays:         730,
		IncludeAudit:      true,
	}, windows(cmd, rc))
}
