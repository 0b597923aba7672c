package entity

// FeedbackSeverity grades one attempt for the front end.
type FeedbackSeverity string

const (
	FeedbackExcellent FeedbackSeverity = "excellent"
	FeedbackGood      FeedbackSeverity = "good"
	FeedbackFair      FeedbackSeverity = "fair"
	FeedbackPoor      FeedbackSeverity = "poor"
)

// Feedback is the small descriptor returned with every attempt. MessageID is
// a short string id the front end resolves per display language; Recorded is
// false when the attempt could not be persisted and the record is unchanged.
type Feedback struct {
	Severity  FeedbackSeverity
	MessageID string
	Recorded  bool
}

// feedback message ids, resolved by the front end's bilingual string table.
const (
	msgExcellent   = "feedback.excellent"
	msgGood        = "feedback.good"
	msgFair        = "feedback.fair"
	msgPoor        = "feedback.poor"
	msgNotRecorded = "feedback.not_recorded"
)

// GradeAttempt computes feedback purely from the attempt outcome and the
// record's new memory strength.
func GradeAttempt(correct bool, memoryStrength float64) Feedback {
	switch {
	case correct && memoryStrength >= 0.9:
		return Feedback{Severity: FeedbackExcellent, MessageID: msgExcellent, Recorded: true}
	case correct:
		return Feedback{Severity: FeedbackGood, MessageID: msgGood, Recorded: true}
	case memoryStrength >= 0.5:
		return Feedback{Severity: FeedbackFair, MessageID: msgFair, Recorded: true}
	default:
		return Feedback{Severity: FeedbackPoor, MessageID: msgPoor, Recorded: true}
	}
}

// NotRecorded marks feedback for an attempt the store failed to persist.
func NotRecorded(correct bool, memoryStrength float64) Feedback {
	fb := GradeAttempt(correct, memoryStrength)
	fb.MessageID = msgNotRecorded
	fb.Recorded = false
	return fb
}
