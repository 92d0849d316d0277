package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/guardsync/types"
)

// SinkBucketReachable checks that the findings sink bucket behind a
// publishing destination actually answers, operating as the log-archive
// account when its ID is known, otherwise the audit account.
func (p *ProbeService) SinkBucketReachable(ctx context.Context, region, destinationArn string) (bool, error) {
	ctx, span := p.tracer.Start(ctx, "SinkBucketReachable")
	defer span.End()

	bucket, err := BucketFromArn(destinationArn)
	if err != nil {
		return false, err
	}

	role := types.RoleAudit
	if p.accounts.LogArchive != "" {
		role = types.RoleLogArchive
	}
	cfg, err := p.configForRole(ctx, role, region)
	if err != nil {
		return false, err
	}

	_, err = p.newS3(cfg).HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// BucketFromArn extracts the bucket name from an S3 ARN, tolerating a
// trailing key prefix (arn:aws:s3:::bucket/prefix).
func BucketFromArn(arn string) (string, error) {
	const prefix = "arn:aws:s3:::"
	if !strings.HasPrefix(arn, prefix) {
		return "", fmt.Errorf("not an S3 ARN: %s", arn)
	}
	rest := strings.TrimPrefix(arn, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", fmt.Errorf("S3 ARN has no bucket name: %s", arn)
	}
	return rest, nil
}
