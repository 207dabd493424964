// Package server exposes the control plane over HTTP: scenario,
// session, and flow endpoints, artifact retrieval, and the WebSocket
// push channel for live execution events. Business rules live in the
// core packages; this layer is routing and translation only
package server
