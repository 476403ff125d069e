// Sample HTTP target for manual load test runs. Request bodies steer the
// response: {"delayMs": N} adds latency, {"fail": true} forces a 500,
// {"status": N} forces an arbitrary status code. The /limited path enforces
// a server-side rate limit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	limitRPS := flag.Float64("limit-rps", 50, "Allowed rate on /limited")
	limitBurst := flag.Int("limit-burst", 50, "Burst size on /limited")
	flag.Parse()

	limiter := rate.NewLimiter(rate.Limit(*limitRPS), *limitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", handleEcho)
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			respondJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
			return
		}
		handleScripted(w, r)
	})
	mux.HandleFunc("/", handleScripted)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("sample target listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func handleScripted(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if len(body) > 0 && gjson.ValidBytes(body) {
		if delay := gjson.GetBytes(body, "delayMs"); delay.Exists() {
			time.Sleep(time.Duration(delay.Int()) * time.Millisecond)
		}
		if gjson.GetBytes(body, "fail").Bool() {
			respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "forced failure"})
			return
		}
		if status := gjson.GetBytes(body, "status"); status.Exists() {
			w.WriteHeader(int(status.Int()))
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "path": r.URL.Path})
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	body := ""
	if r.Body != nil {
		bodyBytes, _ := io.ReadAll(r.Body)
		body = string(bodyBytes)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"method":       r.Method,
		"path":         r.URL.Path,
		"query":        r.URL.RawQuery,
		"headers":      r.Header,
		"body":         body,
		"content_type": r.Header.Get("Content-Type"),
		"timestamp":    time.Now().UnixNano(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
