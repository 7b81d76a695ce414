package enrollment

// =============================================================================
// STAGE NOTIFICATION - Observing the saga from the outside
// =============================================================================

// Stage is the explicit finite-state view of the creation flow, owned by the
// orchestrator and observed by whatever UI layer is attached.
type Stage string

const (
	StageSelectingInputs        Stage = "selecting_inputs"
	StageValidating             Stage = "validating"
	StageCreatingEnrollment     Stage = "creating_enrollment"
	StageGeneratingInstallments Stage = "generating_installments"
	StageAwaitingDownPayment    Stage = "awaiting_down_payment"
	StageCompleted              Stage = "completed"
	StageFailed                 Stage = "failed"
)

// Progress is a point-in-time snapshot of the flow, broadcast on every stage
// change so a wizard can render live feedback during the remote calls.
type Progress struct {
	RequestID    string `json:"request_id"`
	Stage        Stage  `json:"stage"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	// Sequence/Of track installment materialization: "N of M generated".
	Sequence int    `json:"sequence,omitempty"`
	Of       int    `json:"of,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Notifier receives stage transitions. Implementations must not block: the
// orchestrator calls it inline between remote store calls.
type Notifier interface {
	StageChanged(p Progress)
}

// NopNotifier discards all progress events.
type NopNotifier struct{}

func (NopNotifier) StageChanged(Progress) {}
