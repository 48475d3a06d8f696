/*
Package streaming provides timeout-protected streaming utilities for HTTP responses.

# Overview

Downloads pipe a child process's output straight into the response. A slow or
vanished client must not pin that process forever, so the response writer is
wrapped in a TimeoutWriter that bounds every write, the gap between writes, and
the total duration. When any bound trips the writer stops, Done is closed and
Err says why; the producer is expected to kill its source.

# Key Features

  - Per-write timeouts through http.ResponseController write deadlines; writers
    that cannot set deadlines are bounded only by the idle and duration limits
  - Idle detection: streams with no data flow are stopped after an idle period
  - An absolute duration limit as a safety net against hung producers
  - Client disconnect detection via the request context

# Usage

	tw := streaming.NewTimeoutWriter(r.Context(), w, config)
	defer tw.Close()

	go func() {
		<-tw.Done()
		proc.Kill()
	}()

	if _, err := io.Copy(tw, proc.Stdout()); err != nil {
		log.Printf("stream ended: %v", tw.Err())
	}

StreamWithTimeout wraps the same steps for a plain io.Reader.

# Error Handling

	ErrWriteTimeout    a single write exceeded WriteTimeout
	ErrIdleTimeout     nothing was written for IdleTimeout
	ErrMaxDuration     the stream outlived MaxDuration
	ErrClientGone      the request context was canceled
	ErrStreamCanceled  Close was called

# State

State is the per-download machine Validating → HeadersSent → Streaming →
Completed or Aborted. Illegal transitions return ErrIllegalTransition and leave
the state unchanged.
*/
package streaming
