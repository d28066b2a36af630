// Package intake holds the state of a supplier document intake form and the
// service that drives it.
//
// A Form tracks the supplier type, the purchase-order number and one
// DocumentStatus per document slot. A document counts towards submission
// only when it is both uploaded and readable, and a form can be submitted
// only when its PO number has at least three characters and every required
// document of the current supplier type is complete.
//
// # Attempts
//
// Each upload or reset of a document increments its attempt number. The
// readability check and the progress ticker carry the attempt they were
// started for, and the form drops their results once a newer attempt exists.
// Retrying is therefore never blocked by a check that is still running.
//
// # Service
//
// Service keeps forms in a TTL session store, runs readability checks in the
// background, publishes an Event after every change and hands receipts to a
// Notifier.
package intake
