// Package dispatch delivers recognition events to the verification-log
// and order-fulfillment API. Delivery is fire-and-forget and best
// effort: one pass over a prioritized endpoint list per call, no
// retries, and failures never reach the capture loop.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/engine"
)

// verificationRecord is the POST body for /api/log_verification.
type verificationRecord struct {
	Name       string  `json:"name"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location"`
}

// orderRequest is the POST body for /api/process_order.
type orderRequest struct {
	IdentityID string `json:"identityId"`
	Action     string `json:"action"`
}

// orderResponse is the JSON reply from /api/process_order. Items is
// free-form: the API returns either a list or a placeholder string.
type orderResponse struct {
	OrderFulfilled bool            `json:"order_fulfilled"`
	Items          json.RawMessage `json:"items"`
}

// Dispatcher fans recognition events out to the API. The last endpoint
// that answered successfully becomes the preferred candidate for the
// next call (sticky success).
type Dispatcher struct {
	candidates []string
	location   string
	client     *http.Client

	mu      sync.Mutex
	primary string

	wg sync.WaitGroup
}

// New creates a dispatcher from the configured endpoint list. The
// first candidate is the initial primary.
func New(cfg config.DispatchConfig) *Dispatcher {
	candidates := cfg.Candidates()
	return &Dispatcher{
		candidates: candidates,
		location:   cfg.Location,
		client:     &http.Client{Timeout: cfg.Timeout},
		primary:    candidates[0],
	}
}

// Dispatch delivers one event in the background and returns
// immediately. Each event gets its own goroutine; a failure in one
// in-flight event never affects another.
func (d *Dispatcher) Dispatch(event engine.RecognitionEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(event)
	}()
}

// Wait blocks until all in-flight dispatches finish. Used on shutdown;
// the capture loop never calls it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Primary returns the current sticky endpoint.
func (d *Dispatcher) Primary() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.primary
}

// deliver performs the two API calls for one event: the verification
// log record, then order fulfillment when the event names an identity.
func (d *Dispatcher) deliver(event engine.RecognitionEvent) {
	record := verificationRecord{
		Name:       event.Name,
		Matched:    true,
		Confidence: event.Confidence,
		Location:   d.location,
	}
	if _, ok := d.tryPost("/api/log_verification", record); !ok {
		log.Printf("All endpoints failed - verification for %s stored locally only", event.Name)
	}

	if event.IdentityID == "" {
		return
	}

	body, ok := d.tryPost("/api/process_order", orderRequest{IdentityID: event.IdentityID, Action: "fulfill"})
	if !ok {
		log.Printf("All endpoints failed - order fulfillment for %s skipped", event.IdentityID)
		return
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("Unexpected order response for %s: %v", event.IdentityID, err)
		return
	}

	if resp.OrderFulfilled {
		log.Printf("Order fulfilled for %s (%s): %s", event.Name, event.IdentityID, string(resp.Items))
	} else {
		log.Printf("No pending orders for %s (%s)", event.Name, event.IdentityID)
	}
}

// tryPost walks the candidate list in priority order and POSTs the
// payload to the first endpoint that answers 200. That endpoint is
// remembered as the new primary. One pass only; every failure is logged
// and the next candidate tried.
func (d *Dispatcher) tryPost(path string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Marshal payload for %s: %v", path, err)
		return nil, false
	}

	for attempt, base := range d.candidateOrder() {
		body, err := d.postOnce(base+path, data)
		if err != nil {
			log.Printf("Attempt %d: %v", attempt+1, err)
			continue
		}

		d.mu.Lock()
		d.primary = base
		d.mu.Unlock()
		return body, true
	}

	return nil, false
}

func (d *Dispatcher) postOnce(url string, data []byte) ([]byte, error) {
	resp, err := d.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("connection failure to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return buf.Bytes(), nil
}

// candidateOrder returns the candidate list with the sticky primary
// moved to the front.
func (d *Dispatcher) candidateOrder() []string {
	d.mu.Lock()
	primary := d.primary
	d.mu.Unlock()

	ordered := make([]string, 0, len(d.candidates))
	ordered = append(ordered, primary)
	for _, c := range d.candidates {
		if c != primary {
			ordered = append(ordered, c)
		}
	}
	return ordered
}
