package domain

type PendingTag string

const (
	PendingAddModerator    PendingTag = "addmod"
	PendingRemoveModerator PendingTag = "delmod"
	PendingAddStatus       PendingTag = "addstatus"
	PendingEditStatus      PendingTag = "editstatus"
	PendingDeleteStatus    PendingTag = "delstatus"
	PendingSetStatus       PendingTag = "setstatus"
)

func (t PendingTag) Valid() bool {
	switch t {
	case PendingAddModerator, PendingRemoveModerator,
		PendingAddStatus, PendingEditStatus, PendingDeleteStatus,
		PendingSetStatus:
		return true
	}
	return false
}

// PendingActionRepository keeps at most one pending action per actor.
type PendingActionRepository interface {
	Set(actor int64, tag PendingTag)
	Get(actor int64) (PendingTag, bool)
	Clear(actor int64)
}
