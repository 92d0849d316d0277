package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	value string
	err   error
}

func (f *fakeSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)},
	}, nil
}

func TestFetchSharedConfig(t *testing.T) {
	store := NewParamStore(&fakeSSM{
		value: `{"primary_region":"eu-central-1","audit_account_id":"222222222222","log_archive_account_id":"333333333333","organization_id":"o-abc123"}`,
	})

	shared, err := store.FetchSharedConfig(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, shared)
	assert.Equal(t, "eu-central-1", shared.PrimaryRegion)
	assert.Equal(t, "222222222222", shared.AuditAccountID)
	assert.Equal(t, "333333333333", shared.LogArchiveAccountID)
	assert.Equal(t, "o-abc123", shared.OrganizationID)
}

func TestFetchSharedConfigNotFound(t *testing.T) {
	store := NewParamStore(&fakeSSM{err: &ssmtypes.ParameterNotFound{}})

	shared, err := store.FetchSharedConfig(context.Background(), "/custom/key")
	require.NoError(t, err)
	assert.Nil(t, shared)
}

func TestFetchSharedConfigUnreachable(t *testing.T) {
	store := NewParamStore(&fakeSSM{err: errors.New("connection refused")})

	_, err := store.FetchSharedConfig(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchSharedConfigBadJSON(t *testing.T) {
	store := NewParamStore(&fakeSSM{value: "{not json"})

	_, err := store.FetchSharedConfig(context.Background(), "")
	assert.Error(t, err)
}
