package mqtt

import "fmt"

// defaultTopicPrefix is used when no prefix is configured.
const defaultTopicPrefix = "orvibocore"

// Topics builds the MQTT topics Orvibo Core publishes on. Using these
// helpers keeps topic naming consistent between the publisher and any
// external subscribers.
//
// The hierarchy is:
//
//	{prefix}/system/status            service online/offline
//	{prefix}/discovery                discovery pass results
//	{prefix}/device/{addr}/state      per-device state updates
//	{prefix}/signal/{label}/captured  a signal was learned
//	{prefix}/signal/{label}/emitted   a signal was transmitted
//	{prefix}/event/{type}             other service events
//	{prefix}/command/emit             inbound emit commands
type Topics struct {
	// Prefix is the root of the hierarchy. Defaults to "orvibocore".
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return defaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus returns the service status topic.
//
// Example: orvibocore/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// Discovery returns the topic discovery results are published on.
//
// Example: orvibocore/discovery
func (t Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery", t.prefix())
}

// DeviceState returns the state topic for one device.
//
// Example: orvibocore/device/192.168.1.40/state
func (t Topics) DeviceState(addr string) string {
	return fmt.Sprintf("%s/device/%s/state", t.prefix(), addr)
}

// SignalCaptured returns the topic announcing a learned signal.
//
// Example: orvibocore/signal/tv_power/captured
func (t Topics) SignalCaptured(label string) string {
	return fmt.Sprintf("%s/signal/%s/captured", t.prefix(), label)
}

// SignalEmitted returns the topic announcing a transmitted signal.
//
// Example: orvibocore/signal/tv_power/emitted
func (t Topics) SignalEmitted(label string) string {
	return fmt.Sprintf("%s/signal/%s/emitted", t.prefix(), label)
}

// Event returns the topic for a service event.
//
// Example: orvibocore/event/learn_timeout
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), eventType)
}

// CommandEmit returns the topic the service accepts emit commands on.
//
// Example: orvibocore/command/emit
func (t Topics) CommandEmit() string {
	return fmt.Sprintf("%s/command/emit", t.prefix())
}

// AllDeviceStates returns a pattern matching every device state topic.
// External subscribers use this to follow the whole fleet.
//
// Pattern: orvibocore/device/+/state
func (t Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", t.prefix())
}
