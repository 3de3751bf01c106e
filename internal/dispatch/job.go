package dispatch

// Kind is the chat-platform action a job performs.
type Kind string

const (
	KindSend       Kind = "send"
	KindSendAndPin Kind = "send_and_pin"
	KindBan        Kind = "ban"
)

const (
	// DefaultSendAttempts bounds retries for send and send-and-pin jobs.
	DefaultSendAttempts = 5
	// DefaultBanAttempts bounds retries for ban jobs.
	DefaultBanAttempts = 3
)

// Job is one unit of deferred work against the chat platform. Between enqueue
// and terminal resolution the job is owned exclusively by the queue; the
// producer keeps only the handle.
type Job struct {
	ID                string // opaque, assigned on enqueue when empty
	Kind              Kind
	ChatID            int64
	ThreadID          int
	Text              string
	ParseMode         string
	ReplyTo           int
	DisableWebPreview bool
	SilentPin         bool  // pin without notification (send-and-pin only)
	UserID            int64 // ban target (ban only)
	MaxAttempts       int   // 0 means the default for the kind
}

func defaultAttempts(kind Kind) int {
	if kind == KindBan {
		return DefaultBanAttempts
	}
	return DefaultSendAttempts
}
