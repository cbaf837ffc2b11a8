package activity

import "time"

// Action names recorded in the activity log.
const (
	ActionCreate       = "CREATE"
	ActionRelease      = "RELEASE"
	ActionRevise       = "REVISE"
	ActionApprove      = "APPROVE"
	ActionCancel       = "CANCEL_REV"
	ActionObsolete     = "OBSOLETE"
	ActionRestore      = "RESTORE"
	ActionAllocate     = "ALLOCATE"
	ActionLock         = "LOCK"
	ActionUnlock       = "UNLOCK"
	ActionRegisterFile = "REGISTER_FILE"
)

// Entry is one audit event: who did what to which document.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Workspace string    `json:"workspace_id"`
	SessionID string    `json:"session_id"`
	Actor     string    `json:"actor"`
	Host      string    `json:"host"`
	Action    string    `json:"action"`
	Code      string    `json:"code,omitempty"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}
