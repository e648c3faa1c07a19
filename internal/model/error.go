package model

import "errors"

// Error definitions for the model package. All of them are load errors.
var (
	ErrNotFound     = errors.New("weights file not found")
	ErrCorrupt      = errors.New("weights file is unreadable or corrupt")
	ErrIncompatible = errors.New("weights file is not a PyTorch checkpoint")
)
