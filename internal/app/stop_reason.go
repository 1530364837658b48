package app

// StopReason tells Stop why the app is shutting down. It is only logged.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	// StopFinished means the loop reached loop.max_frames.
	StopFinished StopReason = "finished"
)
