// Package adapter defines the radio transport contract shared by both nodes.
//
// A Transport sends whole frames and hands back received frames together with
// the modem's signal metadata. PollReceive never blocks: the owning node calls
// it from its main loop. Vendor errors are normalized to a small set of codes
// through table-driven matching so callers only deal with ErrInvalidRange,
// ErrBusy, ErrUnavailable and ErrInternal.
package adapter
