// Package server implements the core HTTP and WebSocket functionality of
// the Parley chat service.
//
// The participant Registry owns the set of live sessions in join order; the
// Router fans broadcasts out over registry snapshots, routes private
// messages by username, and sequences recorded messages against the history
// store; each Client runs the per-connection session loop. The remaining
// files cover configuration, origin checks, HTTP routing, and the built-in
// chat page.
package server
