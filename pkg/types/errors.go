package types

import "errors"

var (
	ErrMissingSessionID  = errors.New("sessionId is required")
	ErrInvalidUserName   = errors.New("userName must be 1-50 characters")
	ErrMissingTarget     = errors.New("target connection id is required")
	ErrInvalidPage       = errors.New("page must be a positive number")
	ErrInvalidZoom       = errors.New("zoom must be positive")
	ErrInvalidDocument   = errors.New("document url is required")
	ErrUnknownDrawType   = errors.New("unknown whiteboard event type")
	ErrPointOutOfRange   = errors.New("point coordinates must be normalized to [0,1]")
	ErrEmptyPath         = errors.New("path must contain at least one point")
	ErrMissingStrokeID   = errors.New("strokeId is required")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrInvalidLineWidth  = errors.New("lineWidth cannot be negative")
	ErrInvalidPercentage = errors.New("scroll percentage must be within [0,100]")
)
