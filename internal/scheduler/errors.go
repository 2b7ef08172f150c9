package scheduler

import "errors"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")
