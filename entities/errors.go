package entities

import "errors"

var ErrStoreEntityNotFound = errors.New("store resource not found")
var ErrNoLogs = errors.New("push notification contains no logs")
