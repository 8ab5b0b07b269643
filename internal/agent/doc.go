// Package agent runs one generate or stream request end to end.
//
// A request moves through Idle → PrePhase → ModelCall → PostPhase → Done:
//
//   - before: resolve tools, seed a timeline with instructions and context,
//     load or create the thread, recall history and the memory system
//     message, then build the prompt.
//   - the model collaborator runs its step loop; with per-step saves each
//     step's messages are appended and the save queue is scheduled.
//   - after: append the response, force a flush, generate a title for new
//     threads and run evaluators.
//
// A failed model call ends the request without a post-phase.
package agent
