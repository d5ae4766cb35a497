// Package sandbox provides pre-warmed, per-language execution containers
// for untrusted student code.
//
// The Manager owns one pool per supported language. Each pool keeps a
// minimum idle set ready, caps its total size, and hands containers out
// through an acquire/release discipline: idle reuse first, synchronous
// provisioning while below the cap, then blocking until a release or the
// configured wait elapses. A background sweeper enforces idle and running
// TTLs and replenishes the idle set; on startup the manager removes
// containers orphaned by a previous ungraceful shutdown, identified by the
// fleet label.
//
// Containers run with no network, dropped capabilities, capped memory, CPU
// and process count, and an ephemeral tmpfs working area on a read-only
// root. A kernel-isolation runtime such as runsc is applied when configured,
// with graceful fallback to the default runtime.
//
// The production ContainerRuntime shells out to the Docker CLI, mirroring
// how the rest of the service manages external processes; tests substitute
// a fake runtime.
package sandbox
