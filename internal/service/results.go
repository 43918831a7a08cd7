package service

import (
	"errors"

	"github.com/langchou/runtrack/internal/models"
)

// ErrNoUser 缺少用户 ID
var ErrNoUser = errors.New("service: user id required")

// Outcome 操作结果
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeSaved     Outcome = "saved"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
)

// 面向用户的提示
const (
	MsgNoUserSession    = "User session not found"
	MsgPermissionDenied = "Please allow location permission"
	MsgPermissionError  = "Unable to request location permission"
	MsgServicesDisabled = "Please enable location services (GPS)"
	MsgStartFailed      = "Unable to start location tracking"
	MsgNotLoggedIn      = "You are not logged in"
	MsgRunSaved         = "Run saved"
	MsgSaveFailed       = "Failed to save run"
	msgTooShortFormat   = "Run must be at least %d seconds and %g km."
)

// StartResult 开始跑步的结果
type StartResult struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
}

// StopResult 结束跑步的结果
type StopResult struct {
	Outcome Outcome           `json:"outcome"`
	Message string            `json:"message,omitempty"`
	Record  *models.RunRecord `json:"record,omitempty"`
}
