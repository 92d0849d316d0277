package verifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/guardsync/types"
)

var testRegions = []string{"us-east-1", "eu-west-1"}

var testAccounts = types.AccountIDs{
	Management: "111111111111",
	Audit:      "222222222222",
	LogArchive: "333333333333",
}

type mockProber struct {
	accessFn func(region string) (types.ServiceAccessFact, error)
	adminFn  func(region string) (types.AdminFact, error)
	orgFn    func(region string) (types.OrgConfigFact, error)
	detFn    func(role types.AccountRole, region string) (types.DetectorFact, error)
	pubFn    func(region string) (types.PublishingFact, error)
}

func (m *mockProber) ServiceAccess(ctx context.Context, region string) (types.ServiceAccessFact, error) {
	if m.accessFn != nil {
		return m.accessFn(region)
	}
	return types.ServiceAccessFact{Enabled: true}, nil
}

func (m *mockProber) AdminAccount(ctx context.Context, region string) (types.AdminFact, error) {
	if m.adminFn != nil {
		return m.adminFn(region)
	}
	return types.AdminFact{Found: true, AdminAccountID: testAccounts.Audit}, nil
}

func (m *mockProber) OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error) {
	if m.orgFn != nil {
		return m.orgFn(region)
	}
	return types.OrgConfigFact{
		Found:             true,
		DetectorID:        "det-" + region,
		AutoEnableMembers: types.AutoEnableAll,
		S3AutoEnable:      true,
		EKSAutoEnable:     true,
		MalwareAutoEnable: true,
	}, nil
}

func (m *mockProber) Detector(ctx context.Context, role types.AccountRole, region string) (types.DetectorFact, error) {
	if m.detFn != nil {
		return m.detFn(role, region)
	}
	return types.DetectorFact{Found: true, DetectorID: "det-" + region, Enabled: true}, nil
}

func (m *mockProber) PublishingDestination(ctx context.Context, region string) (types.PublishingFact, error) {
	if m.pubFn != nil {
		return m.pubFn(region)
	}
	return types.PublishingFact{
		Found:          true,
		DetectorID:     "det-" + region,
		DestinationID:  "dest-" + region,
		Status:         types.PublishingHealthy,
		DestinationArn: "arn:aws:s3:::org-guardduty-findings",
	}, nil
}

type mockBucketChecker struct {
	reachable bool
	err       error
	arns      []string
}

func (m *mockBucketChecker) SinkBucketReachable(ctx context.Context, region, destinationArn string) (bool, error) {
	m.arns = append(m.arns, destinationArn)
	return m.reachable, m.err
}

func testOptions() Options {
	return Options{
		Regions:  testRegions,
		Accounts: testAccounts,
	}
}

func TestCleanPass(t *testing.T) {
	v := New(&mockProber{}, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, VerdictClean, report.Verdict())
	assert.Zero(t, report.ExitCode())
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, 1, report.ServiceAccess.OK)
	assert.Equal(t, len(testRegions), report.DelegatedAdmin.OK)
	assert.Equal(t, len(testRegions), report.OrgConfig.OK)
	assert.Equal(t, len(testRegions), report.Publishing.OK)
	require.Len(t, report.Detectors, 3)
	for role, tally := range report.Detectors {
		assert.Equal(t, len(testRegions), tally.OK, "role %s", role)
	}
	assert.Equal(t, "arn:aws:s3:::org-guardduty-findings", report.DestinationArn)
}

func TestPartialOrgConfigIsWarningNotIssue(t *testing.T) {
	prober := &mockProber{
		orgFn: func(region string) (types.OrgConfigFact, error) {
			// 3 of 4 sub-features enabled
			return types.OrgConfigFact{
				Found:             true,
				DetectorID:        "det-" + region,
				AutoEnableMembers: types.AutoEnableAll,
				S3AutoEnable:      true,
				EKSAutoEnable:     true,
				MalwareAutoEnable: false,
			}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(testRegions), report.OrgConfig.Partial)
	assert.Zero(t, report.OrgConfig.Missing)
	assert.Empty(t, report.Issues)
	require.Len(t, report.Warnings, len(testRegions))
	assert.Contains(t, report.Warnings[0], "Malware")
	assert.Equal(t, VerdictWarnings, report.Verdict())
	assert.Zero(t, report.ExitCode())
}

func TestMissingOrgConfigIsIssue(t *testing.T) {
	prober := &mockProber{
		orgFn: func(region string) (types.OrgConfigFact, error) {
			return types.OrgConfigFact{}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(testRegions), report.OrgConfig.Missing)
	assert.Equal(t, VerdictFail, report.Verdict())
	assert.Equal(t, 1, report.ExitCode())
}

func TestCheckErrorTalliesWithoutIssue(t *testing.T) {
	prober := &mockProber{
		detFn: func(role types.AccountRole, region string) (types.DetectorFact, error) {
			if region == "us-east-1" {
				return types.DetectorFact{}, errors.New("AccessDenied")
			}
			return types.DetectorFact{Found: true, Enabled: true}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	// Errors are "could not determine", never issues, and the other
	// region is still checked.
	assert.Empty(t, report.Issues)
	for role, tally := range report.Detectors {
		assert.Equal(t, 1, tally.Errors, "role %s", role)
		assert.Equal(t, 1, tally.OK, "role %s", role)
		assert.Zero(t, tally.Missing, "role %s", role)
	}
	assert.Equal(t, VerdictClean, report.Verdict())
}

func TestWrongDelegatedAdminIsIssue(t *testing.T) {
	prober := &mockProber{
		adminFn: func(region string) (types.AdminFact, error) {
			return types.AdminFact{Found: true, AdminAccountID: "999999999999"}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(testRegions), report.DelegatedAdmin.Missing)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[0], "wrong delegated admin (999999999999)")
}

func TestUnhealthyPublishingIsIssue(t *testing.T) {
	prober := &mockProber{
		pubFn: func(region string) (types.PublishingFact, error) {
			return types.PublishingFact{
				Found:         true,
				DetectorID:    "det-" + region,
				DestinationID: "dest-" + region,
				Status:        "UNABLE_TO_PUBLISH",
			}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(testRegions), report.Publishing.Missing)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[0], "publishing status is UNABLE_TO_PUBLISH")
}

func TestServiceAccessDisabledIsIssue(t *testing.T) {
	prober := &mockProber{
		accessFn: func(region string) (types.ServiceAccessFact, error) {
			return types.ServiceAccessFact{}, nil
		},
	}
	v := New(prober, nil, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ServiceAccess.Missing)
	assert.Contains(t, report.Issues, "GuardDuty service access not enabled in Organizations")
}

func TestSinkBucketUnreachableIsWarning(t *testing.T) {
	buckets := &mockBucketChecker{reachable: false}
	v := New(&mockProber{}, buckets, testOptions())
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, buckets.arns, 1)
	assert.Equal(t, "arn:aws:s3:::org-guardduty-findings", buckets.arns[0])
	require.NotNil(t, report.SinkReachable)
	assert.False(t, *report.SinkReachable)
	assert.Equal(t, VerdictWarnings, report.Verdict())
}

func TestMissingAccountSkipsDetectorDimension(t *testing.T) {
	opts := testOptions()
	opts.Accounts.LogArchive = ""

	v := New(&mockProber{}, nil, opts)
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Detectors, 2)
	_, ok := report.Detectors[types.RoleLogArchive]
	assert.False(t, ok)
}

func TestRenderTruncatesLongLists(t *testing.T) {
	report := &Report{Regions: 17}
	for i := 0; i < 14; i++ {
		report.Issues = append(report.Issues, "region: detector not enabled")
	}

	var buf strings.Builder
	report.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "Issues (14):")
	assert.Contains(t, out, "... and 4 more")
	assert.Equal(t, maxListed, strings.Count(out, "  - region"))
}
