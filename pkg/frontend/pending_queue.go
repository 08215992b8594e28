package frontend

// ResponseAction classifies how the extended-query handler should react to
// one buffered unit of work (Parse/Bind/Describe/Execute/Close) once it is
// actually run: forward the backend's real response, skip the message
// entirely, or fake an answer from local state.
type ResponseAction int

const (
	// ActionForward runs the backend call and forwards its real response.
	ActionForward ResponseAction = iota
	// ActionSkip silently discards the message without running anything,
	// because the connection is already in skip mode for this Sync window.
	ActionSkip
	// ActionFake names an answer from local state without any backend call.
	// syncWindow.action never returns it; handlers such as handleClose send
	// their local replies (CloseComplete for an absent name) directly.
	ActionFake
)

// syncWindow tracks the "between Sync boundaries" skip-mode state of the
// extended-query protocol: once an error occurs inside a window, every
// subsequent Parse/Bind/Describe/Execute/Close up to and including the
// next Sync is parsed, counted, and silently discarded except for the
// single ErrorResponse already sent and the closing ReadyForQuery.
type syncWindow struct {
	skipping bool
	skipped  int
}

// enterSkipMode marks the current Sync window as failed; it is idempotent,
// since only the first error in a window may produce an ErrorResponse.
func (w *syncWindow) enterSkipMode() bool {
	if w.skipping {
		return false
	}
	w.skipping = true
	return true
}

// action reports what the caller should do with the next buffered message.
func (w *syncWindow) action() ResponseAction {
	if w.skipping {
		w.skipped++
		return ActionSkip
	}
	return ActionForward
}

// resetAtSync clears skip mode at a Sync boundary, returning the number of
// messages that were skipped in the window that just closed.
func (w *syncWindow) resetAtSync() int {
	skipped := w.skipped
	w.skipping = false
	w.skipped = 0
	return skipped
}
