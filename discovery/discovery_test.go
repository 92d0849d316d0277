package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/guardsync/config"
	"github.com/yairfalse/guardsync/types"
)

type mockProber struct {
	admin    types.AdminFact
	adminErr error
	org      types.OrgConfigFact
	orgErr   error
	orgCalls int
}

func (m *mockProber) DelegatedAdministrator(ctx context.Context, region string) (types.AdminFact, error) {
	return m.admin, m.adminErr
}

func (m *mockProber) OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error) {
	m.orgCalls++
	return m.org, m.orgErr
}

type mockIdentity struct {
	account string
	err     error
}

func (m *mockIdentity) CallerAccountID(ctx context.Context) (string, error) {
	return m.account, m.err
}

func testConfig() config.Effective {
	return config.Effective{
		PrimaryRegion:  "us-east-1",
		ResourcePrefix: "org-sec",
		AuditAccountID: "222222222222",
	}
}

func TestRunDiscoversConfiguredOrg(t *testing.T) {
	prober := &mockProber{
		admin: types.AdminFact{Found: true, AdminAccountID: "222222222222"},
		org: types.OrgConfigFact{
			Found:             true,
			DetectorID:        "det-1",
			AutoEnableMembers: types.AutoEnableAll,
			S3AutoEnable:      true,
			EKSAutoEnable:     true,
			MalwareAutoEnable: false,
		},
	}
	d := New(prober, &mockIdentity{account: "111111111111"}, testConfig())

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Facts.OrgExists)
	assert.Equal(t, "222222222222", result.Facts.DelegatedAdmin)
	assert.True(t, result.Facts.AutoEnable)
	assert.True(t, result.Facts.S3Protection)
	assert.True(t, result.Facts.EKSProtection)
	assert.False(t, result.Facts.MalwareProtection)

	assert.Equal(t, "111111111111", result.Variables.ManagementAccountID)
	assert.Equal(t, "222222222222", result.Variables.AuditAccountID)
	assert.Equal(t, "org-sec", result.Variables.ResourcePrefix)
	assert.True(t, result.Variables.OrgExists)
}

func TestRunWithNoDelegatedAdmin(t *testing.T) {
	prober := &mockProber{admin: types.AdminFact{}}
	d := New(prober, &mockIdentity{account: "111111111111"}, testConfig())

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Facts.OrgExists)
	assert.Empty(t, result.Facts.DelegatedAdmin)
	assert.Zero(t, prober.orgCalls)
}

func TestRunWithForeignDelegatedAdmin(t *testing.T) {
	prober := &mockProber{
		admin: types.AdminFact{Found: true, AdminAccountID: "999999999999"},
	}
	d := New(prober, &mockIdentity{account: "111111111111"}, testConfig())

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	// Org exists but its configuration is not visible to us.
	assert.True(t, result.Facts.OrgExists)
	assert.Equal(t, "999999999999", result.Facts.DelegatedAdmin)
	assert.False(t, result.Facts.AutoEnable)
	assert.Zero(t, prober.orgCalls)
}

func TestRunProbeFailureDegradesToEmptyFacts(t *testing.T) {
	prober := &mockProber{adminErr: errors.New("AccessDenied")}
	d := New(prober, &mockIdentity{account: "111111111111"}, testConfig())

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Facts.OrgExists)
}

func TestRunSkipsDiscoveryWithoutAuditAccount(t *testing.T) {
	cfg := testConfig()
	cfg.AuditAccountID = ""
	prober := &mockProber{}
	d := New(prober, &mockIdentity{account: "111111111111"}, cfg)

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Facts.OrgExists)
	assert.Zero(t, prober.orgCalls)
}

func TestRunIdentityFailureIsFatal(t *testing.T) {
	d := New(&mockProber{}, &mockIdentity{err: errors.New("ExpiredToken")}, testConfig())

	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caller identity")
}

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	d := New(&mockProber{}, &mockIdentity{}, testConfig())

	result := &Result{
		Facts: Facts{OrgExists: true, DelegatedAdmin: "222222222222"},
		Variables: Variables{
			PrimaryRegion:       "us-east-1",
			ResourcePrefix:      "org-sec",
			AuditAccountID:      "222222222222",
			ManagementAccountID: "111111111111",
			OrgExists:           true,
			DelegatedAdmin:      "222222222222",
		},
	}
	require.NoError(t, d.Write(result, dir))

	// The facts file keeps the hand-off key names.
	raw, err := os.ReadFile(filepath.Join(dir, FactsFile))
	require.NoError(t, err)
	var facts map[string]any
	require.NoError(t, json.Unmarshal(raw, &facts))
	assert.Equal(t, true, facts["guardduty_org_exists"])
	assert.Equal(t, "222222222222", facts["guardduty_delegated_admin"])
	assert.Contains(t, facts, "guardduty_s3_protection")
	assert.Contains(t, facts, "guardduty_eks_protection")
	assert.Contains(t, facts, "guardduty_malware_protection")

	vars, err := ReadVariables(dir)
	require.NoError(t, err)
	assert.Equal(t, result.Variables, *vars)
}

func TestReadVariablesMissingFile(t *testing.T) {
	_, err := ReadVariables(t.TempDir())
	require.Error(t, err)
}
