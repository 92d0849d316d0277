package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// IsAccessDenied reports whether err is an access-denied API response.
// Probes that look for expected-absent resources use this to stay quiet
// instead of flagging an error.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
		return true
	}
	return false
}
