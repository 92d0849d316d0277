package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/types"
)

// GuardDutyAPI is the subset of the GuardDuty client used by the probes.
type GuardDutyAPI interface {
	ListDetectors(ctx context.Context, params *guardduty.ListDetectorsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *guardduty.GetDetectorInput, optFns ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
	DescribeOrganizationConfiguration(ctx context.Context, params *guardduty.DescribeOrganizationConfigurationInput, optFns ...func(*guardduty.Options)) (*guardduty.DescribeOrganizationConfigurationOutput, error)
	ListOrganizationAdminAccounts(ctx context.Context, params *guardduty.ListOrganizationAdminAccountsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListOrganizationAdminAccountsOutput, error)
	ListPublishingDestinations(ctx context.Context, params *guardduty.ListPublishingDestinationsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListPublishingDestinationsOutput, error)
	DescribePublishingDestination(ctx context.Context, params *guardduty.DescribePublishingDestinationInput, optFns ...func(*guardduty.Options)) (*guardduty.DescribePublishingDestinationOutput, error)
}

// OrganizationsAPI is the subset of the Organizations client used here.
type OrganizationsAPI interface {
	ListDelegatedAdministrators(ctx context.Context, params *organizations.ListDelegatedAdministratorsInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedAdministratorsOutput, error)
	ListAWSServiceAccessForOrganization(ctx context.Context, params *organizations.ListAWSServiceAccessForOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.ListAWSServiceAccessForOrganizationOutput, error)
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// SSMAPI is the subset of the SSM client used for the shared parameter store.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// S3API is the subset of the S3 client used for sink health checks.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ProbeService discovers GuardDuty organization state across accounts and
// regions. It builds service clients on demand: management-account clients
// from the caller's own credentials, audit/log-archive clients from
// assumed-role sessions.
type ProbeService struct {
	sessions *SessionProvider
	accounts types.AccountIDs
	logger   *telemetry.Logger
	tracer   trace.Tracer

	// test seams: when set, these override client construction
	newGuardDuty func(cfg aws.Config) GuardDutyAPI
	newOrgs      func(cfg aws.Config) OrganizationsAPI
	newS3        func(cfg aws.Config) S3API
}

// NewProbeService creates a probe service for the given account topology.
func NewProbeService(sessions *SessionProvider, accounts types.AccountIDs) *ProbeService {
	return &ProbeService{
		sessions: sessions,
		accounts: accounts,
		logger:   telemetry.NewLogger("aws-probes"),
		tracer:   otel.Tracer("aws-probes"),
		newGuardDuty: func(cfg aws.Config) GuardDutyAPI {
			return guardduty.NewFromConfig(cfg)
		},
		newOrgs: func(cfg aws.Config) OrganizationsAPI {
			return organizations.NewFromConfig(cfg)
		},
		newS3: func(cfg aws.Config) S3API {
			return s3.NewFromConfig(cfg)
		},
	}
}

// LoadBaseConfig loads the caller's own AWS configuration for a region.
func LoadBaseConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// guardDutyClient returns a GuardDuty client operating as the given account
// role in the given region. Management uses the caller's own identity; other
// roles require an assumed-role session.
func (p *ProbeService) guardDutyClient(ctx context.Context, role types.AccountRole, region string) (GuardDutyAPI, error) {
	cfg, err := p.configForRole(ctx, role, region)
	if err != nil {
		return nil, err
	}
	return p.newGuardDuty(cfg), nil
}

func (p *ProbeService) configForRole(ctx context.Context, role types.AccountRole, region string) (aws.Config, error) {
	if role == types.RoleManagement {
		return p.sessions.OwnConfig(ctx, region)
	}

	accountID := p.accounts.ForRole(role)
	if accountID == "" {
		return aws.Config{}, fmt.Errorf("%w: no account ID configured for role %s", types.ErrSessionUnavailable, role)
	}
	return p.sessions.Acquire(ctx, accountID, region)
}
