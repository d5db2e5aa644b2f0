// Package http implements the HTTP handlers of the analysis server.
//
// Handlers stay thin: they parse and validate the request, call a service
// and render the result. Every error goes through errors.ErrorHandler, so
// clients always receive RFC 7807 problem details.
//
// Routes, relative to the /api prefix the application mounts them under:
//
//	POST /analyze                            multipart upload, field "files", optional "domain"
//	GET  /sessions/{id}                      stored analysis report
//	GET  /sessions/{id}/data?page&limit      paged cleaned rows
//	POST /sessions/{id}/chat                 question about the dataset
//	GET  /sessions/{id}/export?format=       cleaned dataset as csv or xlsx
//	GET  /preferences/{domain}               learned chart weights
//	POST /preferences/{domain}/interactions  chart feedback
//	GET  /audit                              audit trail
//	GET  /health                             dependency health
//	GET  /health/ready                       503 unless every dependency is ready
//	GET  /health/live                        process liveness
//	GET  /version                            build information
package http
