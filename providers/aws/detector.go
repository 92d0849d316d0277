package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/yairfalse/guardsync/types"
)

// Detector probes one account's detector in one region. The detector is the
// prerequisite for every other per-account resource; an empty detector list
// is NotFound, not an error.
func (p *ProbeService) Detector(ctx context.Context, role types.AccountRole, region string) (types.DetectorFact, error) {
	ctx, span := p.tracer.Start(ctx, "Detector")
	defer span.End()

	client, err := p.guardDutyClient(ctx, role, region)
	if err != nil {
		return types.DetectorFact{}, err
	}
	return probeDetector(ctx, client)
}

func probeDetector(ctx context.Context, client GuardDutyAPI) (types.DetectorFact, error) {
	detectorID, err := resolveDetectorID(ctx, client)
	if err != nil {
		return types.DetectorFact{}, err
	}
	if detectorID == "" {
		return types.DetectorFact{}, nil
	}

	out, err := client.GetDetector(ctx, &guardduty.GetDetectorInput{
		DetectorId: aws.String(detectorID),
	})
	if err != nil {
		return types.DetectorFact{}, fmt.Errorf("failed to get detector %s: %w", detectorID, err)
	}

	fact := types.DetectorFact{
		Found:      true,
		DetectorID: detectorID,
		Enabled:    out.Status == gdtypes.DetectorStatusEnabled,
	}

	// Absent nested blocks mean the feature is off, never an error.
	if ds := out.DataSources; ds != nil {
		if ds.S3Logs != nil {
			fact.S3Enabled = ds.S3Logs.Status == gdtypes.DataSourceStatusEnabled
		}
		if ds.Kubernetes != nil && ds.Kubernetes.AuditLogs != nil {
			fact.EKSEnabled = ds.Kubernetes.AuditLogs.Status == gdtypes.DataSourceStatusEnabled
		}
		if mp := ds.MalwareProtection; mp != nil &&
			mp.ScanEc2InstanceWithFindings != nil &&
			mp.ScanEc2InstanceWithFindings.EbsVolumes != nil {
			fact.MalwareEnabled = mp.ScanEc2InstanceWithFindings.EbsVolumes.Status == gdtypes.DataSourceStatusEnabled
		}
	}

	return fact, nil
}

// resolveDetectorID returns the region's detector ID, or empty when none exists.
func resolveDetectorID(ctx context.Context, client GuardDutyAPI) (string, error) {
	out, err := client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		if IsAccessDenied(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to list detectors: %w", err)
	}
	if len(out.DetectorIds) == 0 {
		return "", nil
	}
	return out.DetectorIds[0], nil
}
