package repository

import "errors"

var (
	ErrVideoNotFound   = errors.New("video not found")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrInvalidRange    = errors.New("invalid time range")
	ErrOverlap         = errors.New("segment time range overlaps an existing segment")
)
