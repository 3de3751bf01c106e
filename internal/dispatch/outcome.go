package dispatch

// Outcome is the terminal result of a job: either a successful delivery with
// the resulting platform message ID, or a failure with the final error.
type Outcome struct {
	JobID     string
	OK        bool
	MessageID int
	Err       error
}

// HandleStatus is the immediate result of an enqueue call.
type HandleStatus string

const (
	StatusQueued HandleStatus = "queued"
	StatusError  HandleStatus = "error"
)

// Handle is returned to the producer as soon as a job is accepted (or
// rejected) by the queue. It never reflects delivery state; delivery is
// observable only through the outcome channel of EnqueueWait.
type Handle struct {
	JobID  string
	ChatID int64
	Status HandleStatus
	Err    error // set when Status == StatusError
}
