// Package journal records what a statekit scenario observed.
//
// This package is internal to statekit and keeps an ordered, in-memory log
// of state changes, event dispatches and action status transitions. It
// implements a publish-subscribe pattern so a consumer can follow entries as
// they are recorded.
//
// The main components are:
//
//   - [Journal]: Interface defining recording and subscription operations
//   - [MemoryJournal]: In-memory implementation of Journal with pub/sub
//   - [Entry]: A single recorded observation
//
// Subscribers receive entries via channels with non-blocking sends (slow
// subscribers will miss entries rather than block the recorder).
package journal
