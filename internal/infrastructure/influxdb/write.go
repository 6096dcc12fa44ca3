package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/palmgrid/orvibo-core/internal/bridges/orvibo"
)

// WriteBridgeStats records a snapshot of the UDP transport counters.
//
// Called periodically so Grafana dashboards can track frame throughput and
// drop rates over time. The write is non-blocking.
func (c *Client) WriteBridgeStats(snap orvibo.StatsSnapshot) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"frames_tx":      int64(snap.FramesTx),
		"frames_rx":      int64(snap.FramesRx),
		"frames_dropped": int64(snap.FramesDropped),
		"timeouts":       int64(snap.Timeouts),
		"errors_total":   int64(snap.ErrorsTotal),
	}
	if !snap.LastActivity.IsZero() {
		fields["last_activity"] = snap.LastActivity.Unix()
	}

	point := write.NewPoint(
		"bridge_stats",
		map[string]string{"bridge": "orvibo"},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignalEvent records a capture or emission of a named signal.
//
// Parameters:
//   - event: "captured" or "emitted"
//   - label: the stored signal name
//   - deviceAddr: network address of the device involved
func (c *Client) WriteSignalEvent(event string, label string, deviceAddr string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"signal_events",
		map[string]string{
			"event": event,
			"label": label,
		},
		map[string]interface{}{
			"device_addr": deviceAddr,
			"count":       int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"goroutines": 42})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g. replayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
