// Package httputil provides HTTP handler utilities shared by the API server:
// JSON response helpers, query parameter parsing, and common middleware.
//
// Response helpers:
//
//	httputil.WriteSuccess(w, payload)
//	httputil.WriteBadRequest(w, "lat is required")
//	httputil.WriteInternalError(w, err)
//
// Request parsing:
//
//	var req AnalysisRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	lat, err := httputil.ParseQueryFloat(r, "lat", 0)
//
// Middleware composes with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//	)(mux)
package httputil
