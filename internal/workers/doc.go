/*
Package workers sizes worker pools from the CPUs actually available to
the process.

# Overview

In a container with a CPU limit, runtime.NumCPU still reports the host's
core count. Go 1.19+ sets GOMAXPROCS from the cgroup limit instead, so
this package derives worker counts from runtime.GOMAXPROCS(0). On a
64-core node with a 2-CPU pod limit, NumCPU says 64 and GOMAXPROCS says
2; sizing the compression pool from the former means heavy throttling
and context-switch overhead for no extra throughput.

# Usage

Pick the helper that matches the workload, with a cap:

	// Video compression and poster extraction are CPU-bound:
	// one worker per available CPU.
	n := workers.ForCPU(8)

	// Object storage uploads are I/O-bound: two per CPU.
	n := workers.ForIO(16)

	// Mixed read-process-write loops (decode clip, score, persist).
	n := workers.ForMixed(12)

For other ratios, call Count directly:

	n := workers.Count(3.0, 24) // 3 per CPU, at most 24
	n := workers.Count(2.0, 0)  // uncapped

Always pass a cap when the workers hit a shared downstream resource. A
pool that uploads to object storage should not exceed what the S3 client
and the network can absorb, and a pool that writes SQLite rows gains
nothing past a handful of workers.

# Override

The PROCESS_WORKERS environment variable pins the count, bypassing the
CPU calculation but still subject to the cap. Useful when tuning a
deployment or reproducing a concurrency bug:

	env:
	- name: PROCESS_WORKERS
	  value: "4"

# Thread Safety

All functions are safe for concurrent use; they only read GOMAXPROCS and
the environment.
*/
package workers
