// receiver is a sample subscriber endpoint for local testing. It verifies
// the webhook signature and exposes endpoints that succeed, fail, or stall,
// so delivery-health behavior can be exercised end to end.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	secret := os.Getenv("WEBHOOK_SECRET")

	// Always 200; verifies the signature when WEBHOOK_SECRET is set.
	http.HandleFunc("/hooks/ok", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		verified := "-"
		if secret != "" {
			if verifySignature(body, secret, r.Header.Get("X-Webhook-Signature")) {
				verified = "ok"
			} else {
				verified = "BAD"
			}
		}
		logRequest(r, count, 200, verified)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	// Always 500 — drives the consecutive-failure counter.
	http.HandleFunc("/hooks/fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 500, "-")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	// 200 after a 3s stall — exercises the delivery timeout.
	http.HandleFunc("/hooks/slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, 200, "-")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received (slow)"})
	})

	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("Receiver starting on :%s", port)
	log.Printf("  POST /hooks/ok    -> 200 OK (verifies signature)")
	log.Printf("  POST /hooks/fail  -> 500 Error")
	log.Printf("  POST /hooks/slow  -> 200 OK (3s delay)")
	log.Printf("  GET  /stats       -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func verifySignature(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func logRequest(r *http.Request, count int64, status int, verified string) {
	fmt.Printf("[#%d] %s %s -> %d | verified=%s event=%s id=%s attempt=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		verified,
		r.Header.Get("X-Webhook-Event"),
		truncate(r.Header.Get("X-Webhook-ID"), 12),
		r.Header.Get("X-Webhook-Attempt"),
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
