package zset

import "errors"

var (
	ErrNotFloat     = errors.New("ERR value is not a valid float")
	ErrInvalidRange = errors.New("ERR min or max is not a float")
	ErrScoreNaN     = errors.New("ERR resulting score is not a number (NaN)")
)
