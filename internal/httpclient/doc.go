// Package httpclient builds the outgoing HTTP requests for a load test.
//
// [NewRequestBuilder] resolves the target URL (direct, or base URL plus
// endpoint path), canonicalizes headers, and injects a JSON content type when
// a body is present without one. [Build] then produces a fresh request per
// request id, so templated bodies expand independently for every call:
//
//	builder, err := httpclient.NewRequestBuilder(cfg, engine)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, requestID)
//
// [NewClient] creates an http.Client tuned for sustained load: keep-alive
// connection reuse, a per-request timeout, and HTTP/2 where available.
package httpclient
