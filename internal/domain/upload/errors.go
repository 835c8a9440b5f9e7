package upload

import "errors"

var ErrStorageUnavailable = errors.New("model storage is not configured")
