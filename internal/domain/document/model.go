package document

import "time"

// Type is the closed set of document kinds.
type Type string

const (
	TypePart     Type = "PART"
	TypeAssembly Type = "ASSY"
	TypeMachine  Type = "MACHINE"
	TypeGroup    Type = "GROUP"
)

// IsVersioned reports whether the type uses the version counter
// (machines and groups) rather than the part/assembly sequence.
func (t Type) IsVersioned() bool {
	return t == TypeMachine || t == TypeGroup
}

// State is the workflow state of a document.
type State string

const (
	StateWIP        State = "WIP"
	StateReleased   State = "REL"
	StateInRevision State = "IN_REV"
	StateObsolete   State = "OBS"
)

// Direction is the allocation direction of a counter cursor.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// CounterScope identifies one allocation domain. Machines use (Type, Machine);
// groups, parts and assemblies use (Type, Machine, Group[, Variant]).
type CounterScope struct {
	Type    Type
	Machine string
	Group   string
	Variant string
}

// Document is a persisted design artifact record, keyed by Code.
// Codes are immutable once assigned; documents are never deleted, only
// transitioned to Obsolete.
type Document struct {
	Code        string `json:"code"`
	Type        Type   `json:"type"`
	Machine     string `json:"machine"`
	Group       string `json:"group,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Seq         int    `json:"seq"`
	Revision    int    `json:"revision"`
	State       State  `json:"state"`
	ObsPrev     State  `json:"obs_prev_state,omitempty"`
	Description string `json:"description"`
	ModelPath   string `json:"model_path,omitempty"`
	DrawingPath string `json:"drawing_path,omitempty"`
	// Working copies while the document is in revision.
	InRevModelPath   string    `json:"inrev_model_path,omitempty"`
	InRevDrawingPath string    `json:"inrev_drawing_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ModifiedAt       time.Time `json:"modified_at"`
}

// Paths is the physical file placement of a document's linked files.
type Paths struct {
	Model   string
	Drawing string
}

// Lock is the advisory per-document lock held by an editing session.
type Lock struct {
	Code       string    `json:"code"`
	OwnerID    string    `json:"owner_session"`
	OwnerUser  string    `json:"owner_user"`
	OwnerHost  string    `json:"owner_host"`
	AcquiredAt time.Time `json:"acquired_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Session identifies the running instance for locking and audit purposes.
type Session struct {
	ID   string
	User string
	Host string
}

// StateNote is a free-text note recorded alongside a workflow transition.
type StateNote struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Event     string    `json:"event"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Note      string    `json:"note"`
	RevBefore int       `json:"rev_before"`
	RevAfter  int       `json:"rev_after"`
	CreatedAt time.Time `json:"created_at"`
}

// Machine is a registered machine code with a display name.
type Machine struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a registered group code under a machine.
type Group struct {
	Machine   string    `json:"machine"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
