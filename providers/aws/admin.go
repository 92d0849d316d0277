package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/yairfalse/guardsync/types"
)

// AdminAccount probes the delegated-admin registration in one region using
// the caller's own identity. NotFound means no admin is registered there.
func (p *ProbeService) AdminAccount(ctx context.Context, region string) (types.AdminFact, error) {
	ctx, span := p.tracer.Start(ctx, "AdminAccount")
	defer span.End()

	client, err := p.guardDutyClient(ctx, types.RoleManagement, region)
	if err != nil {
		return types.AdminFact{}, err
	}
	return probeAdminAccount(ctx, client)
}

func probeAdminAccount(ctx context.Context, client GuardDutyAPI) (types.AdminFact, error) {
	out, err := client.ListOrganizationAdminAccounts(ctx, &guardduty.ListOrganizationAdminAccountsInput{})
	if err != nil {
		// AccessDenied here means no admin is visible to the caller, which
		// is the normal answer before delegation has ever run.
		if IsAccessDenied(err) {
			return types.AdminFact{}, nil
		}
		return types.AdminFact{}, fmt.Errorf("failed to list organization admin accounts: %w", err)
	}

	if len(out.AdminAccounts) == 0 {
		return types.AdminFact{}, nil
	}

	return types.AdminFact{
		Found:          true,
		AdminAccountID: aws.ToString(out.AdminAccounts[0].AdminAccountId),
	}, nil
}
