package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/yairfalse/guardsync/config"
	"github.com/yairfalse/guardsync/telemetry"
)

// DefaultSharedConfigParameter is the parameter store key the landing-zone
// deployment publishes its shared configuration under.
const DefaultSharedConfigParameter = "/org/landing-zone/shared-config"

// ParamStore reads the shared organization configuration from SSM.
type ParamStore struct {
	client SSMAPI
	logger *telemetry.Logger
}

// NewParamStore creates a shared parameter store reader.
func NewParamStore(client SSMAPI) *ParamStore {
	return &ParamStore{
		client: client,
		logger: telemetry.NewLogger("paramstore"),
	}
}

// FetchSharedConfig reads and decodes the JSON shared-config parameter.
// A missing parameter returns (nil, nil): the caller merges operator
// config only. Any other failure is reported so callers can log it, but
// is likewise non-fatal by contract.
func (p *ParamStore) FetchSharedConfig(ctx context.Context, name string) (*config.SharedConfig, error) {
	if name == "" {
		name = DefaultSharedConfigParameter
	}

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			p.logger.Debug().Str("parameter", name).Msg("shared config parameter does not exist")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read shared config parameter %s: %w", name, err)
	}

	var shared config.SharedConfig
	if err := json.Unmarshal([]byte(aws.ToString(out.Parameter.Value)), &shared); err != nil {
		return nil, fmt.Errorf("failed to decode shared config parameter %s: %w", name, err)
	}
	return &shared, nil
}
