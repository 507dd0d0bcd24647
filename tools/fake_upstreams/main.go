// Command fake_upstreams runs local stand-ins for the Telegram Bot API
// and the Antares oneM2M platform so the monitor can be exercised
// without real credentials. Accepted calls are logged to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeUpstreams struct {
	start    time.Time
	latency  time.Duration
	failRate float64

	mu       sync.Mutex
	byChat   map[string]int64
	byStatus map[string]int64
	total    int64
	cinSeq   int64
}

func main() {
	addr := getenvDefault("FAKE_UPSTREAMS_ADDR", ":18081")
	latencyMs := getenvIntDefault("FAKE_UPSTREAMS_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_UPSTREAMS_FAIL_RATE", 0)

	srv := &fakeUpstreams{
		start:    time.Now().UTC(),
		latency:  time.Duration(latencyMs) * time.Millisecond,
		failRate: failRate,
		byChat:   make(map[string]int64),
		byStatus: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/antares/", srv.handleAntares)
	mux.HandleFunc("/", srv.handleRoot)

	log.Printf("fake Telegram and Antares upstreams listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeUpstreams) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeUpstreams) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      s.total,
		"by_chat":    s.byChat,
		"by_status":  s.byStatus,
		"cin_total":  s.cinSeq,
	})
}

func (s *fakeUpstreams) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/bot") && strings.HasSuffix(r.URL.Path, "/sendMessage") {
		s.handleSendMessage(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *fakeUpstreams) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	chat := fmt.Sprintf("%v", payload["chat_id"])
	text, _ := payload["text"].(string)

	status := "sent"
	if s.failRate > 0 && rand.Float64() < s.failRate {
		status = "failed"
	}
	seq := s.recordCall(chat, status)

	if status == "failed" {
		log.Printf("telegram sendMessage chat=%s status=%s", chat, status)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  http.StatusBadGateway,
			"description": "fake send failed",
		})
		return
	}

	log.Printf("telegram sendMessage chat=%s status=%s text=%q", chat, status, text)
	writeJSON(w, map[string]any{
		"ok": true,
		"result": map[string]any{
			"message_id": seq,
			"chat":       map[string]any{"id": chat},
			"text":       text,
		},
	})
}

func (s *fakeUpstreams) handleAntares(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("X-M2M-Origin") == "" {
		http.Error(w, "missing X-M2M-Origin", http.StatusUnauthorized)
		return
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	var envelope struct {
		CIN struct {
			Content string `json:"con"`
		} `json:"m2m:cin"`
	}
	_ = json.NewDecoder(r.Body).Decode(&envelope)

	s.mu.Lock()
	s.cinSeq++
	seq := s.cinSeq
	s.mu.Unlock()

	log.Printf("antares cin path=%s con=%s", r.URL.Path, envelope.CIN.Content)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"m2m:cin": map[string]any{"ri": fmt.Sprintf("cin-%06d", seq)},
	})
}

func (s *fakeUpstreams) recordCall(chat, status string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byChat[chat]++
	s.byStatus[status]++
	return s.total
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
