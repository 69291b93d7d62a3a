package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
)

func TestBuildAuditQuery(t *testing.T) {
	outcome := audit.OutcomeFailed
	hash := "abc"

	q, args := buildAuditQuery(&audit.Filter{Outcome: &outcome, EmailHash: &hash, Limit: 20, Offset: 40}, false)
	require.Contains(t, q, "WHERE outcome = $1 AND email_hash = $2")
	require.Contains(t, q, "ORDER BY created_at DESC LIMIT $3 OFFSET $4")
	require.Equal(t, []interface{}{"failed", "abc", 20, 40}, args)

	q, args = buildAuditQuery(nil, true)
	require.Equal(t, "SELECT COUNT(*) FROM contribution_audit", q)
	require.Empty(t, args)
}
