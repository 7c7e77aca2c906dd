package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the envelope for every status document the agent emits,
// whether served over HTTP or attached to a telemetry lifecycle event.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner is the document body. Event and Reason are empty for the HTTP
// endpoint and set for telemetry snapshots.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Device        string          `json:"device"`
	Pins          map[int]string  `json:"pins"`
	Ready         bool            `json:"ready"`
	Network       NetworkJSON     `json:"network"`
	Delivery      DeliveryJSON    `json:"delivery"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Telemetry     TelemetryStatus `json:"telemetry"`
	Config        ConfigJSON      `json:"config"`
}

// NetworkJSON reports the health monitor's view of connectivity.
type NetworkJSON struct {
	Connected bool   `json:"connected"`
	Gateway   string `json:"gateway,omitempty"`
	LastCheck string `json:"last_check,omitempty"`
}

// DeliveryJSON reports the delivery counters and the pending-failure flag.
type DeliveryJSON struct {
	Delivered      int  `json:"delivered"`
	Dropped        int  `json:"dropped"`
	Failed         int  `json:"failed"`
	Restorations   int  `json:"restorations"`
	PendingFailure bool `json:"pending_failure"`
}

// TelemetryStatus reports MQTT mirror connection state.
type TelemetryStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON view of the agent's running configuration.
type ConfigJSON struct {
	Collector      string `json:"collector"`
	Pins           []int  `json:"pins"`
	DebounceMs     int    `json:"debounce_ms"`
	CheckIntervalS int    `json:"check_interval_s"`
	HTTPAddr       string `json:"http_addr,omitempty"`
}

// document assembles the full status body from a snapshot.
func (s Snapshot) document(event, reason string) StatusJSON {
	// Configured pins that never reported a level show as UNKNOWN.
	pins := make(map[int]string, len(s.Config.Pins))
	for _, pin := range s.Config.Pins {
		pins[pin] = "UNKNOWN"
	}
	for pin, state := range s.Pins {
		pins[pin] = state
	}

	network := NetworkJSON{Connected: s.Connected, Gateway: s.Gateway}
	if !s.LastCheck.IsZero() {
		network.LastCheck = s.LastCheck.UTC().Format(time.RFC3339)
	}

	delivery := DeliveryJSON{
		Delivered:      s.Counts.Delivered,
		Dropped:        s.Counts.Dropped,
		Failed:         s.Counts.Failed,
		Restorations:   s.Counts.Restorations,
		PendingFailure: s.PendingFailure,
	}

	return StatusJSON{Status: StatusInner{
		Event:         event,
		Reason:        reason,
		Device:        s.Config.Device,
		Pins:          pins,
		Ready:         s.Seeded,
		Network:       network,
		Delivery:      delivery,
		UptimeSeconds: int64(s.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     s.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     s.Now.UTC().Format(time.RFC3339),
		Telemetry:     TelemetryStatus{Connected: s.TelemetryConnected, Broker: s.Config.Broker},
		Config: ConfigJSON{
			Collector:      s.Config.Collector,
			Pins:           s.Config.Pins,
			DebounceMs:     s.Config.DebounceMs,
			CheckIntervalS: s.Config.CheckIntervalS,
			HTTPAddr:       s.Config.HTTPAddr,
		},
	}}
}

// FormatJSON renders the indented status document served over HTTP.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(snap.document("", ""), "", "  ")
	return data
}

// FormatStatusEvent renders a compact status document for a telemetry
// lifecycle event such as STARTUP, SHUTDOWN, or HEARTBEAT.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	data, _ := json.Marshal(snap.document(event, reason))
	return data
}
