// Package delivery serializes line events and transmits them to the
// collector, one TCP connection per attempt. Classification of the result
// is the whole job; retry policy belongs to the caller.
package delivery

import (
	"encoding/json"
	"math"
	"time"
)

// RestoredPin is the sentinel pin carried by the restoration notice.
const RestoredPin = -1

// RestoredState marks the synthetic event telling the collector a delivery
// gap occurred.
const RestoredState = "CONNECTIVITY_RESTORED"

// Event is the immutable record of one reported transition.
type Event struct {
	DeviceName  string
	Pin         int
	State       string
	TimeDiffSec float64
	Timestamp   time.Time
}

// RestoredEvent builds the synthetic notice sent before the first real
// event after an outage.
func RestoredEvent(device string, at time.Time) Event {
	return Event{
		DeviceName: device,
		Pin:        RestoredPin,
		State:      RestoredState,
		Timestamp:  at,
	}
}

// payload is the wire form: a single JSON object per connection.
type payload struct {
	DeviceName  string  `json:"device_name"`
	Pin         int     `json:"pin"`
	State       string  `json:"state"`
	TimeDiffSec float64 `json:"time_diff_sec"`
	Timestamp   string  `json:"timestamp"`
}

// Payload renders the event as the collector's wire JSON: duration rounded
// to millisecond precision, timestamp in local time.
func Payload(e Event) ([]byte, error) {
	return json.Marshal(payload{
		DeviceName:  e.DeviceName,
		Pin:         e.Pin,
		State:       e.State,
		TimeDiffSec: math.Round(e.TimeDiffSec*1000) / 1000,
		Timestamp:   e.Timestamp.Local().Format("2006-01-02 15:04:05"),
	})
}
