// Package mqtt provides MQTT client connectivity for Orvibo Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Orvibo Core publishes its events (discovery results, device state,
// captured and emitted signals) onto the broker so that dashboards and
// automation engines can consume them without talking to the HTTP API.
//
//	Orvibo Core → MQTT Broker → subscribers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := client.TopicFor().SignalCaptured("tv_power")
//	client.Publish(topic, payload, 1, false)
package mqtt
