// Package services is the business layer between the HTTP handlers and the
// analysis pipeline.
//
// AnalysisService validates uploads, bounds concurrent runs, executes the
// pipeline, stores the resulting session and records audit entries.
// PreferenceService and AuditService expose the learned chart weights and the
// audit trail. HealthService reports liveness and readiness.
//
// Audit writes are best effort: a failing audit store is logged and never
// fails the user's request.
package services
