package proxy

import (
	"errors"
	"io"
	"time"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
	"github.com/streamrelay/streamrelay/pkg/sse"
	"github.com/streamrelay/streamrelay/proxy/worker"
)

// pumpFragments decodes the upstream event stream in src and writes each
// text fragment to pw as soon as it is decoded. On the terminal sentinel the
// pipe is closed cleanly and the usage job is returned with ok set. Decode
// and transport errors close the pipe with the error, so the client sees the
// stream break without a terminating chunk.
func (p *Proxy) pumpFragments(src io.Reader, pw *io.PipeWriter, job worker.Job) (worker.Job, bool) {
	dec := sse.NewDecoder(src)
	defer dec.Close()

	fingerprint := eventstream.Fingerprint(job.Token)

	for {
		frag, err := dec.Next()
		if err != nil {
			if errors.Is(err, sse.ErrDecode) {
				p.logger.Warn("upstream stream decode failed",
					"token_fingerprint", fingerprint,
					"fragments", job.Fragments,
					"error", err,
				)
			} else {
				p.logger.Error("error reading upstream stream",
					"token_fingerprint", fingerprint,
					"fragments", job.Fragments,
					"error", err,
				)
			}
			pw.CloseWithError(err)
			return job, false
		}

		if frag.Done {
			job.CompletedAt = time.Now()
			pw.Close()
			return job, true
		}

		if frag.Text == "" {
			continue
		}

		// pw.Write blocks until fasthttp reads from the pipe and flushes
		// the chunk to the client.
		n, err := pw.Write([]byte(frag.Text))
		job.Bytes += int64(n)
		if err != nil {
			p.logger.Debug("client went away mid-stream",
				"token_fingerprint", fingerprint,
				"error", err,
			)
			pw.CloseWithError(err)
			return job, false
		}
		job.Fragments++
	}
}
