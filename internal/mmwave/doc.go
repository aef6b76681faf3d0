// Package mmwave decodes the binary frame stream emitted by a TI mmWave
// people-counting sensor over its data UART.
//
// The stream carries no alignment guarantees: frames begin with a fixed
// 8-byte magic word, followed by a 52-byte header that declares the total
// packet length and the number of TLV sub-records. The FrameProcessor
// accumulates arbitrary byte chunks, synchronizes against the magic word,
// and emits at most one fully decoded frame per Ingest call.
//
// Decoded target trajectories additionally drive the OccupancyTracker,
// which maintains monotonically increasing entered/exited counters from
// zero crossings of target x-positions inside a central band.
package mmwave
