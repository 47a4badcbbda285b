package validate

import (
	"regexp"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

const (
	// Operation names end in operations/{operationId}, optionally prefixed
	// by a parent resource, for example:
	//   operations/7a64e1b2
	//   projects/my-project/locations/us-east1/operations/123456789
	OperationRegex = `^(?:[a-zA-Z0-9._~-]+(?:/[a-zA-Z0-9._~-]+)*/)?operations/[a-zA-Z0-9._~-]+$`
)

// Argument validates an argument and returns a grpc error if not valid.
func Argument(name string, value string, regex string) error {
	// validate the Name field using regex
	if !regexp.MustCompile(regex).MatchString(value) {
		return status.Errorf(
			codes.InvalidArgument,
			"%s (%s) is not of the right format: %s", name, value, regex)
	}
	return nil
}

// Required validates an argument to be not nil.
func Required(name string, message proto.Message) error {
	if message == nil {
		return status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return nil
}
