// Package httpapi serves the process's one operator-facing surface: a
// plain health endpoint returning "OK", per spec.md §6.
package httpapi

import (
	"fmt"
	"net/http"
)

// NewHealthServer builds an *http.Server bound to addr with a single route.
// The caller owns ListenAndServe/Shutdown.
func NewHealthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	return &http.Server{Addr: addr, Handler: mux}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "OK")
}
