// Package inbox orchestrates Gmail inbox synchronization: it lists
// recent inbox messages, classifies the ones the local store has not
// seen yet and records message metadata alongside each classification.
// Gmail label mirroring is opt-in per run.
package inbox
