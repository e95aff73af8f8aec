package session

import (
	"encoding/json"
	"time"
)

// Status is the resolution state of a session. Its string form is the
// "status" value clients see on the poll and WebSocket paths, which is
// why the zero value reads "waiting" rather than "pending".
type Status int

const (
	Waiting Status = iota
	Succeeded
	Failed
)

var statusNames = map[Status]string{
	Waiting:   "waiting",
	Succeeded: "success",
	Failed:    "error",
}

var statusFromName = map[string]Status{
	"waiting": Waiting,
	"success": Succeeded,
	"error":   Failed,
}

func (st Status) String() string {
	if s, ok := statusNames[st]; ok {
		return s
	}
	return "unknown"
}

func (st Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(st.String())
}

func (st *Status) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := statusFromName[s]; ok {
		*st = v
	}
	return nil
}

// Outcome is what a session resolved to: an authorization code on
// success, a provider error message on failure, or neither while the
// callback has not arrived yet.
type Outcome struct {
	Status Status
	Code   string
	Err    string
}

// Terminal reports whether the outcome can still change. Terminal
// outcomes never do: the store forbids success→error and overwrites.
func (o Outcome) Terminal() bool {
	return o.Status != Waiting
}

// Session is a rendezvous record. The ID is chosen by the initiating
// client and treated as an unguessable capability token; the relay
// never generates one.
type Session struct {
	ID        string
	CreatedAt time.Time
	Outcome   Outcome
}
