package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/yairfalse/guardsync/types"
)

// PublishingDestination probes the S3 findings export destination in one
// region, operating as the audit account. NotFound covers both a missing
// detector and a detector without an S3 destination.
func (p *ProbeService) PublishingDestination(ctx context.Context, region string) (types.PublishingFact, error) {
	ctx, span := p.tracer.Start(ctx, "PublishingDestination")
	defer span.End()

	client, err := p.guardDutyClient(ctx, types.RoleAudit, region)
	if err != nil {
		return types.PublishingFact{}, err
	}
	return probePublishingDestination(ctx, client)
}

func probePublishingDestination(ctx context.Context, client GuardDutyAPI) (types.PublishingFact, error) {
	detectorID, err := resolveDetectorID(ctx, client)
	if err != nil {
		return types.PublishingFact{}, err
	}
	if detectorID == "" {
		return types.PublishingFact{}, nil
	}

	out, err := client.ListPublishingDestinations(ctx, &guardduty.ListPublishingDestinationsInput{
		DetectorId: aws.String(detectorID),
	})
	if err != nil {
		return types.PublishingFact{}, fmt.Errorf("failed to list publishing destinations: %w", err)
	}

	for _, dest := range out.Destinations {
		if dest.DestinationType != gdtypes.DestinationTypeS3 {
			continue
		}

		fact := types.PublishingFact{
			Found:         true,
			DetectorID:    detectorID,
			DestinationID: aws.ToString(dest.DestinationId),
			Status:        string(dest.Status),
		}

		detail, err := client.DescribePublishingDestination(ctx, &guardduty.DescribePublishingDestinationInput{
			DetectorId:    aws.String(detectorID),
			DestinationId: dest.DestinationId,
		})
		if err != nil {
			return types.PublishingFact{}, fmt.Errorf("failed to describe publishing destination: %w", err)
		}
		if detail.DestinationProperties != nil {
			fact.DestinationArn = aws.ToString(detail.DestinationProperties.DestinationArn)
		}

		return fact, nil
	}

	return types.PublishingFact{DetectorID: detectorID}, nil
}
