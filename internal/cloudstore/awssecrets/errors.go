package awssecrets

import (
	"errors"

	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

func asResourceNotFound(err error, target **smtypes.ResourceNotFoundException) bool {
	return errors.As(err, target)
}

func asResourceExists(err error, target **smtypes.ResourceExistsException) bool {
	return errors.As(err, target)
}
