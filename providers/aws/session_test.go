package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTS struct {
	assumeInput *sts.AssumeRoleInput
	assumeErr   error
	account     string
	identityErr error
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.assumeInput = params
	if f.assumeErr != nil {
		return nil, f.assumeErr
	}
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("AKIAEXAMPLE"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      aws.Time(time.Now().Add(15 * time.Minute)),
		},
	}, nil
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestAcquireSession(t *testing.T) {
	client := &fakeSTS{}
	provider := NewSessionProvider(client, "guardsync-sync")

	cfg, err := provider.Acquire(context.Background(), "222222222222", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	require.NotNil(t, client.assumeInput)
	assert.Equal(t, "arn:aws:iam::222222222222:role/OrganizationAccountAccessRole", aws.ToString(client.assumeInput.RoleArn))
	assert.Equal(t, "guardsync-sync", aws.ToString(client.assumeInput.RoleSessionName))
	assert.Equal(t, DefaultSessionDuration, aws.ToInt32(client.assumeInput.DurationSeconds))

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
}

func TestAcquireSessionEmptyAccount(t *testing.T) {
	provider := NewSessionProvider(&fakeSTS{}, "guardsync-sync")
	_, err := provider.Acquire(context.Background(), "", "eu-west-1")
	assert.Error(t, err)
}

func TestAcquireSessionDenied(t *testing.T) {
	client := &fakeSTS{assumeErr: errors.New("no trust relationship")}
	provider := NewSessionProvider(client, "guardsync-sync")

	_, err := provider.Acquire(context.Background(), "222222222222", "eu-west-1")
	assert.Error(t, err)
}

func TestCallerAccountID(t *testing.T) {
	provider := NewSessionProvider(&fakeSTS{account: "111111111111"}, "guardsync-sync")
	id, err := provider.CallerAccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "111111111111", id)
}
