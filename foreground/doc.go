// Package foreground drives what the visible app shows: which screen is up, the
// current location readout, the last login error, and the automatic logout
// dialog. It renders nothing; hosts subscribe to [Coordinator.Updates] and draw
// each [View].
package foreground
