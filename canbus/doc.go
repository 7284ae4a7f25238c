// Package canbus provides the CAN and CAN FD plumbing used by the demo node.
//
// It includes:
//   - A Frame type covering classical and CAN FD frames, with validation,
//     DLC mapping and the Linux SocketCAN binary layouts
//   - An in-memory loopback bus for tests and simulations
//   - A Mux fanning received frames out to filtered subscribers
//   - A slog-backed logging decorator
//   - A Linux SocketCAN driver and interface helpers (linux-only)
package canbus
