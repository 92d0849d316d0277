package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/yairfalse/guardsync/types"
)

// guardDutyPrincipal is the service principal under which GuardDuty
// integrates with Organizations.
const guardDutyPrincipal = "guardduty.amazonaws.com"

// ServiceAccess probes whether GuardDuty service access is enabled for the
// organization. Organizations is a global service called with the caller's
// own identity.
func (p *ProbeService) ServiceAccess(ctx context.Context, region string) (types.ServiceAccessFact, error) {
	ctx, span := p.tracer.Start(ctx, "ServiceAccess")
	defer span.End()

	cfg, err := p.sessions.OwnConfig(ctx, region)
	if err != nil {
		return types.ServiceAccessFact{}, err
	}
	return probeServiceAccess(ctx, p.newOrgs(cfg))
}

func probeServiceAccess(ctx context.Context, client OrganizationsAPI) (types.ServiceAccessFact, error) {
	out, err := client.ListAWSServiceAccessForOrganization(ctx, &organizations.ListAWSServiceAccessForOrganizationInput{})
	if err != nil {
		return types.ServiceAccessFact{}, fmt.Errorf("failed to list service access: %w", err)
	}

	for _, svc := range out.EnabledServicePrincipals {
		if aws.ToString(svc.ServicePrincipal) == guardDutyPrincipal {
			return types.ServiceAccessFact{Enabled: true}, nil
		}
	}
	return types.ServiceAccessFact{}, nil
}

// DelegatedAdministrator probes the org-level delegated administrator
// registration for GuardDuty, used by the discovery phase.
func (p *ProbeService) DelegatedAdministrator(ctx context.Context, region string) (types.AdminFact, error) {
	ctx, span := p.tracer.Start(ctx, "DelegatedAdministrator")
	defer span.End()

	cfg, err := p.sessions.OwnConfig(ctx, region)
	if err != nil {
		return types.AdminFact{}, err
	}
	return probeDelegatedAdministrator(ctx, p.newOrgs(cfg))
}

func probeDelegatedAdministrator(ctx context.Context, client OrganizationsAPI) (types.AdminFact, error) {
	out, err := client.ListDelegatedAdministrators(ctx, &organizations.ListDelegatedAdministratorsInput{
		ServicePrincipal: aws.String(guardDutyPrincipal),
	})
	if err != nil {
		if IsAccessDenied(err) {
			return types.AdminFact{}, nil
		}
		return types.AdminFact{}, fmt.Errorf("failed to list delegated administrators: %w", err)
	}

	if len(out.DelegatedAdministrators) == 0 {
		return types.AdminFact{}, nil
	}
	return types.AdminFact{
		Found:          true,
		AdminAccountID: aws.ToString(out.DelegatedAdministrators[0].Id),
	}, nil
}
