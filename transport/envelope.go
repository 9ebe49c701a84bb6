package transport

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON body of every webhook response.
type Envelope struct {
	OK      bool    `json:"ok"`
	Message string  `json:"message,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

type Result struct {
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

func success(result *Result) Envelope {
	return Envelope{OK: true, Result: result}
}

func failure(message string) Envelope {
	return Envelope{OK: false, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
