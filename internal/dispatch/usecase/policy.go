package usecase

// Trigger names what started a dispatch.
type Trigger string

const (
	TriggerAutomatic Trigger = "automatic"
	TriggerManual    Trigger = "manual"
)

// FailurePolicy says whether a meeting is marked as sent when dispatch does
// not go through. Marking it sent stops further attempts.
type FailurePolicy struct {
	MarkSentOnDenial  bool
	MarkSentOnFailure bool
}

// policies: the scheduler has nobody to retry for it, so a denied or failed
// automatic dispatch is final. A user who clicked "send bot" can retry.
var policies = map[Trigger]FailurePolicy{
	TriggerAutomatic: {MarkSentOnDenial: true, MarkSentOnFailure: true},
	TriggerManual:    {MarkSentOnDenial: false, MarkSentOnFailure: false},
}

func PolicyFor(trigger Trigger) FailurePolicy {
	return policies[trigger]
}
