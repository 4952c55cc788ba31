package provider

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// ErrorFields extracts AWS API error details for structured logs.
func ErrorFields(err error) logrus.Fields {
	fields := logrus.Fields{}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields["aws_error_code"] = apiErr.ErrorCode()
		fields["aws_error_fault"] = apiErr.ErrorFault().String()
	}
	return fields
}
