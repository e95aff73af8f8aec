package ws

import (
	"github.com/ytanalyzer/oauth-relay/internal/session"
)

// statusMessage is the single wire shape shared by poll responses and
// WebSocket pushes:
//
//	{"status":"waiting"}
//	{"code":"...","status":"success"}
//	{"error":"...","status":"error"}
//	{"error":"Session expired","status":"expired"}
type statusMessage struct {
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status"`
}

func outcomeMessage(o session.Outcome) statusMessage {
	return statusMessage{
		Code:   o.Code,
		Error:  o.Err,
		Status: o.Status.String(),
	}
}

var (
	waitingMessage = statusMessage{Status: "waiting"}
	expiredMessage = statusMessage{Error: "Session expired", Status: "expired"}
)
