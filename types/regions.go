package types

import "strings"

// DefaultRegions lists every region where the organization deploys GuardDuty.
// The order is fixed so sweeps and reports are reproducible.
var DefaultRegions = []string{
	"us-east-1",
	"us-east-2",
	"us-west-1",
	"us-west-2",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"eu-central-1",
	"eu-north-1",
	"ap-southeast-1",
	"ap-southeast-2",
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-northeast-3",
	"ap-south-1",
	"ca-central-1",
	"sa-east-1",
}

// RegionSuffix converts a region name to the suffix used in state addresses
// (us-east-1 -> us_east_1).
func RegionSuffix(region string) string {
	return strings.ReplaceAll(region, "-", "_")
}

// IsKnownRegion reports whether region appears in the given region list.
func IsKnownRegion(region string, regions []string) bool {
	for _, r := range regions {
		if r == region {
			return true
		}
	}
	return false
}
