// Package reveal schedules the progressive disclosure of a tree.
//
// A Machine moves through Idle -> Running(cursor) -> Complete -> Idle, advancing
// its cursor by one every Interval. Construction paces the nodes of a freshly
// loaded tree in pre-order; Playback paces the steps of a classification trace
// and surfaces the predicted label once the trace has been shown.
//
// Time is injected through Clock. The default is clockwork's real clock; tests
// drive a ManualClock, or a clockwork fake through Clockwork, instead of
// sleeping.
package reveal
