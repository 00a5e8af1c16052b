package repository

import "errors"

var (
	ErrRedisConnection         = errors.New("redis connection error")
	ErrInvalidNotificationData = errors.New("invalid notification data")
)
