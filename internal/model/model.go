package model

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConsistencyViolation = errors.New("accruing position needs both annual rate and term")
	ErrInsufficientData     = errors.New("insufficient data")
)
