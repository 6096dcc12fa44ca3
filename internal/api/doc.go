// Package api provides the HTTP REST API and WebSocket server for Orvibo Core.
//
// It exposes device discovery, signal capture and emission, stored signal
// management, and system metrics to user interfaces and automation glue.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Device operations run through the Controller interface so handlers can be
// tested without real hardware on the network.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
