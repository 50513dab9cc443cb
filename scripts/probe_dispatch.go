// Manual smoke probe for a running notification API.
//
// Submits a notification, resubmits the same idempotency key to confirm
// the duplicate short-circuit, then polls the delivery record until it
// reaches a terminal state. Intended to be run by hand against a local
// instance wired to the noop provider:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/probe_dispatch.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ProbeResult is the diagnostic record for one step of the probe.
type ProbeResult struct {
	Step         string `json:"step"`
	Status       string `json:"status"` // "OK", "HTTP_ERROR", "DECODE_ERROR", "TIMEOUT", "UNEXPECTED"
	HTTPCode     int    `json:"http_code,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ResponseTime int64  `json:"response_time_ms"`
}

type submitRequest struct {
	Channel        string `json:"channel"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key"`
}

type submitResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
	State          string `json:"state"`
	Duplicate      bool   `json:"duplicate"`
}

type deliveryDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
	State          string `json:"state"`
	AttemptCount   int    `json:"attempt_count"`
	LastError      string `json:"last_error"`
}

func main() {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	key := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	req := submitRequest{
		Channel:        "sms",
		Recipient:      "+15551234567",
		Body:           "dispatch probe",
		IdempotencyKey: key,
	}

	var results []ProbeResult
	results = append(results, probeSubmit(client, baseURL, req, "submit", false))
	results = append(results, probeSubmit(client, baseURL, req, "resubmit_same_key", true))
	results = append(results, probeDelivery(client, baseURL, key))

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("marshal results: %v", err)
	}
	fmt.Println(string(out))

	for _, r := range results {
		if r.Status != "OK" {
			os.Exit(1)
		}
	}
}

func probeSubmit(client *http.Client, baseURL string, req submitRequest, step string, wantDuplicate bool) ProbeResult {
	result := ProbeResult{Step: step}

	body, err := json.Marshal(req)
	if err != nil {
		result.Status = "UNEXPECTED"
		result.Detail = err.Error()
		return result
	}

	start := time.Now()
	resp, err := client.Post(baseURL+"/notifications", "application/json", bytes.NewReader(body))
	result.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "HTTP_ERROR"
		result.Detail = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.HTTPCode = resp.StatusCode
	if resp.StatusCode != http.StatusAccepted {
		result.Status = "HTTP_ERROR"
		result.Detail = readBody(resp.Body)
		return result
	}

	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		result.Status = "DECODE_ERROR"
		result.Detail = err.Error()
		return result
	}
	if decoded.Duplicate != wantDuplicate {
		result.Status = "UNEXPECTED"
		result.Detail = fmt.Sprintf("duplicate=%v, want %v", decoded.Duplicate, wantDuplicate)
		return result
	}

	result.Status = "OK"
	result.Detail = fmt.Sprintf("status=%s state=%s", decoded.Status, decoded.State)
	return result
}

func probeDelivery(client *http.Client, baseURL, key string) ProbeResult {
	result := ProbeResult{Step: "poll_delivery"}
	deadline := time.Now().Add(30 * time.Second)

	for {
		start := time.Now()
		resp, err := client.Get(baseURL + "/deliveries/" + key)
		result.ResponseTime = time.Since(start).Milliseconds()
		if err != nil {
			result.Status = "HTTP_ERROR"
			result.Detail = err.Error()
			return result
		}

		result.HTTPCode = resp.StatusCode
		if resp.StatusCode != http.StatusOK {
			result.Status = "HTTP_ERROR"
			result.Detail = readBody(resp.Body)
			_ = resp.Body.Close()
			return result
		}

		var rec deliveryDTO
		err = json.NewDecoder(resp.Body).Decode(&rec)
		_ = resp.Body.Close()
		if err != nil {
			result.Status = "DECODE_ERROR"
			result.Detail = err.Error()
			return result
		}

		if rec.State == "succeeded" || rec.State == "failed" {
			result.Status = "OK"
			result.Detail = fmt.Sprintf("state=%s attempts=%d last_error=%q", rec.State, rec.AttemptCount, rec.LastError)
			return result
		}
		if time.Now().After(deadline) {
			result.Status = "TIMEOUT"
			result.Detail = fmt.Sprintf("still %s after 30s (attempts=%d)", rec.State, rec.AttemptCount)
			return result
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return err.Error()
	}
	return string(b)
}
