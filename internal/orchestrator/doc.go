// Package orchestrator drives one multi-angle capture session.
//
// A session walks each angle through the same loop:
//
//	AwaitingTutorial(n) -> Recording(n) -> Validating(n)
//	    rejected: Rejected(n) -> Recording(n) on retry acknowledgement
//	    accepted: AwaitingTutorial(n+1), or Assembling after the last angle
//	Assembling -> Completed(artifact)
//
// Abandoned and Failed are terminal and reachable from any phase that
// still has work pending. Failed is entered only when the recording device
// cannot be used; gate rejections never fail a session.
//
// The Orchestrator owns the accepted segments and at most one open device
// session. Every attempt opens a fresh device session and the previous one
// is closed first, so no buffer or timer state carries across attempts.
// Device outcomes are delivered with the AttemptToken they were opened
// with; outcomes for any other token are ignored.
//
// All methods are safe for concurrent use. Collaborator callbacks
// (Presenter, EventRecorder) run while the session lock is held and must
// not call back into the Orchestrator synchronously.
package orchestrator
