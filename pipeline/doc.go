// Package pipeline defines the envelope passed between agents and the
// append-only execution trace it carries.
//
// An Envelope holds the question (Input), a free-form Context map with the
// current answer, feedback, phase and iteration count, and the trace of
// StepRecords written by every hop so far. Each hop appends exactly one
// record and never reorders or drops earlier ones. Envelopes have value
// semantics: hand a Clone to a callee, never the original.
package pipeline
