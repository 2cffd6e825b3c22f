// Package checker implements the webharden audit pipeline.
//
// Architecture overview:
//
//   - NormalizeTarget turns user input into an AuditTarget (https by default).
//   - Fetcher issues the one primary GET; its failure ends the audit with
//     score 0 and a single "Request failed" recommendation.
//   - AnalyzeHeaders and ParseCookieFlags work on the captured response only.
//   - TLSInspector and RedirectVerifier probe the host directly and run
//     concurrently; each fails softly and only affects its own deduction.
//   - Scorecard folds deductions into a 0-100 score in a fixed order and keeps
//     the recommendations in that same order.
//
// Auditor wires these together and also satisfies Checker, so Runner can
// audit a list of targets with bounded concurrency and rate limiting.
package checker
