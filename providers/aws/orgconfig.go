package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/yairfalse/guardsync/types"
)

// OrgConfiguration probes the organization auto-enable configuration in one
// region. The call must run as the delegated admin, so it uses the audit
// account session. A region without a detector is NotFound.
func (p *ProbeService) OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error) {
	ctx, span := p.tracer.Start(ctx, "OrgConfiguration")
	defer span.End()

	client, err := p.guardDutyClient(ctx, types.RoleAudit, region)
	if err != nil {
		return types.OrgConfigFact{}, err
	}
	return probeOrgConfiguration(ctx, client)
}

func probeOrgConfiguration(ctx context.Context, client GuardDutyAPI) (types.OrgConfigFact, error) {
	detectorID, err := resolveDetectorID(ctx, client)
	if err != nil {
		return types.OrgConfigFact{}, err
	}
	if detectorID == "" {
		return types.OrgConfigFact{}, nil
	}

	out, err := client.DescribeOrganizationConfiguration(ctx, &guardduty.DescribeOrganizationConfigurationInput{
		DetectorId: aws.String(detectorID),
	})
	if err != nil {
		if IsAccessDenied(err) {
			return types.OrgConfigFact{}, nil
		}
		return types.OrgConfigFact{}, fmt.Errorf("failed to describe organization configuration: %w", err)
	}

	fact := types.OrgConfigFact{
		Found:             true,
		DetectorID:        detectorID,
		AutoEnableMembers: string(out.AutoEnableOrganizationMembers),
	}
	if fact.AutoEnableMembers == "" {
		// Older responses only carry the deprecated boolean flag.
		if aws.ToBool(out.AutoEnable) {
			fact.AutoEnableMembers = types.AutoEnableAll
		} else {
			fact.AutoEnableMembers = types.AutoEnableNone
		}
	}

	if ds := out.DataSources; ds != nil {
		if ds.S3Logs != nil {
			fact.S3AutoEnable = aws.ToBool(ds.S3Logs.AutoEnable)
		}
		if ds.Kubernetes != nil && ds.Kubernetes.AuditLogs != nil {
			fact.EKSAutoEnable = aws.ToBool(ds.Kubernetes.AuditLogs.AutoEnable)
		}
		if mp := ds.MalwareProtection; mp != nil &&
			mp.ScanEc2InstanceWithFindings != nil &&
			mp.ScanEc2InstanceWithFindings.EbsVolumes != nil {
			fact.MalwareAutoEnable = aws.ToBool(mp.ScanEc2InstanceWithFindings.EbsVolumes.AutoEnable)
		}
	}

	return fact, nil
}
