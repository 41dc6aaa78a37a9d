package mqtt

import "errors"

// ErrPublishFailed is returned when a message could not be published within
// the configured number of attempts.
var ErrPublishFailed = errors.New("mqtt publish failed")
