// Package engine evaluates a streamed, untrusted UI tree against a data
// model.
//
// ARCHITECTURE:
//
// A Session owns one Tree, one Stream, one Model and one Dispatcher.
//
//	generator -> Stream -> Tree <- Renderer -> Node tree -> host renderers
//	                                   ^                         |
//	                                 Model <- Dispatcher <- user actions
//
// Tree Store:
// The Tree holds the root pointer and the flat element map. Each patch is
// staged in full and committed as one step under the tree's lock, so
// readers see either the tree before a patch or after it, never between.
//
// Streaming:
// A Stream applies patches strictly in arrival order and moves through
// empty -> building -> settled | aborted. While building, a child key with
// no element is simply not rendered. Settle reports every such key as a
// DANGLING_REFERENCE. Abort keeps the last fully-applied tree.
//
// Rendering:
// The Renderer walks from the root, evaluating visibility, checking props
// against the catalog and expanding repeats. Repeat context is passed down
// as an explicit *pointer.RepeatScope argument; nothing about one item
// leaks into the next. A failure in one element becomes a diagnostic on
// that element and never aborts its siblings.
//
// Actions:
// The Dispatcher runs host handlers for actions declared in props. An
// action with confirm waits in confirm-pending until Confirm or Cancel.
// onSuccess and onError writes go to the Model, whose writes are
// serialized and produce a new document each time.
//
// Determinism:
// Patches and invocations are stamped from a logical Clock, never a wall
// clock. Replaying a journal applies the same patches at the same seqs and
// yields the same SpecHash.
package engine
