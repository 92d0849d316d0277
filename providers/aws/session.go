package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/types"
)

// DefaultSessionDuration is the assumed-role session lifetime in seconds.
// One probe-and-import round per target fits well inside it.
const DefaultSessionDuration int32 = 900

// orgAccessRole is the cross-account role every member account trusts the
// management account to assume.
const orgAccessRole = "OrganizationAccountAccessRole"

// SessionProvider exchanges the caller's identity for temporary credentials
// in a member account. Acquisition failure is uniform: callers get an error
// and must skip the target, not abort the sweep. No retry happens here.
type SessionProvider struct {
	stsClient   STSAPI
	sessionName string
	duration    int32
	logger      *telemetry.Logger

	mu    sync.Mutex
	cache map[string]aws.Config // own-identity configs keyed by region
}

// NewSessionProvider creates a session provider backed by STS AssumeRole.
func NewSessionProvider(stsClient STSAPI, sessionName string) *SessionProvider {
	return &SessionProvider{
		stsClient:   stsClient,
		sessionName: sessionName,
		duration:    DefaultSessionDuration,
		logger:      telemetry.NewLogger("session-provider"),
		cache:       make(map[string]aws.Config),
	}
}

// Acquire assumes the org access role in the target account and returns a
// config scoped to that account and region.
func (s *SessionProvider) Acquire(ctx context.Context, accountID, region string) (aws.Config, error) {
	if accountID == "" {
		return aws.Config{}, fmt.Errorf("account ID must not be empty")
	}

	roleArn := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, orgAccessRole)
	out, err := s.stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(s.sessionName),
		DurationSeconds: aws.Int32(s.duration),
	})
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("account_id", accountID).
			Str("region", region).
			Msg("assume role failed")
		return aws.Config{}, fmt.Errorf("%w: failed to assume %s in %s: %v", types.ErrSessionUnavailable, orgAccessRole, accountID, err)
	}

	creds := out.Credentials
	return aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			aws.ToString(creds.AccessKeyId),
			aws.ToString(creds.SecretAccessKey),
			aws.ToString(creds.SessionToken),
		),
	}, nil
}

// OwnConfig returns the caller's own configuration for a region, loading it
// once per region.
func (s *SessionProvider) OwnConfig(ctx context.Context, region string) (aws.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, ok := s.cache[region]; ok {
		return cfg, nil
	}

	cfg, err := LoadBaseConfig(ctx, region)
	if err != nil {
		return aws.Config{}, err
	}
	s.cache[region] = cfg
	return cfg, nil
}

// CallerAccountID resolves the management account ID from the caller identity.
func (s *SessionProvider) CallerAccountID(ctx context.Context) (string, error) {
	out, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
