package notifications

// Outcome reports whether a notification was delivered. Failures are
// carried as values so a runner can log them without letting a delivery
// fault roll back a committed transition.
type Outcome struct {
	Sent bool
	Err  error
}

// SentOutcome marks a successful delivery.
func SentOutcome() Outcome {
	return Outcome{Sent: true}
}

// FailedOutcome marks a failed delivery with its reason.
func FailedOutcome(err error) Outcome {
	return Outcome{Err: err}
}

// SkippedOutcome marks a notification that was not attempted, e.g.
// because email is disabled.
func SkippedOutcome() Outcome {
	return Outcome{}
}
