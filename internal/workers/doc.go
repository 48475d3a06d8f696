/*
Package workers sizes the concurrency limits used by the service in
containerized environments.

runtime.NumCPU() reports the host's CPU count, while GOMAXPROCS follows
the container's cgroup CPU limit (Go 1.19+). Every slot the service hands
out here is backed by an extractor child process, so the number must track
the CPUs the container can actually use:

	// Slots for yt-dlp manifest fetches, at most 8
	slots := workers.ForIO(8, cfg.ExtractorWorkers)

Extractor runs spend most of their time waiting on the network inside the
child, which is why the default multiplier for them is 2.0.

# Overrides

Operators can pin the count with EXTRACTOR_WORKERS; the value is passed in
as the override argument and is still capped by the limit.
*/
package workers
