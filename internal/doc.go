// Package internal contains the implementation packages for visualtree.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - scanner: workspace tree model, filters and the level-parallel walk
//   - aggregator: ordered, fault-isolated file concatenation and rendering
//   - language: file extension to language tag mapping
//   - gateway: panel template preparation under a nonce-based policy
//   - protocol: the panel message union and its JSON codec
//   - bridge: per-panel dispatch and the single panel slot
//   - server, websocket: the HTTP and WebSocket panel host
//   - viewer, notify: document and notification surfaces
//   - config, logging, errors, security, validation, version: ambient stack
//
// # Inter-Package Communication
//
// The bridge depends only on small interfaces (TreeScanner,
// ContentAggregator, DocumentViewer, Notifier, Panel) declared in its own
// package. The server implements Panel and PanelFactory; cmd wires the
// concrete types together.
//
// # Security Considerations
//
//   - Panel pages only run scripts carrying the per-render nonce
//   - Asset references may not climb above the resource root
//   - Sockets and state-changing requests are origin checked
//   - Config validation rejects path traversal and shell metacharacters
//
// # Testing Strategy
//
// Unit tests use testify. Property tests built with gopter live behind
// the property build tag:
//
//	go test -tags property ./...
package internal
