// Package translate drives the resumable translation job: batches of
// pending corpus entries are sent to a text-generation service as Python
// assignment blocks, the answers are parsed as data, validated, and
// accepted into the checkpoint.
package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minios-linux/llvm-i18n/checkpoint"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/validate"
)

// DefaultBatchSize is the number of entries per request when unset.
const DefaultBatchSize = 20

// DefaultTimeout bounds one request when unset.
const DefaultTimeout = 300 * time.Second

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options controls the translation loop.
type Options struct {
	// Prompt is the instruction template placed before the assignment block.
	Prompt string
	// BatchSize is how many pending entries go into one request.
	BatchSize int
	// Timeout bounds a single request, streaming included.
	Timeout time.Duration
	// RetryDelay pauses the loop after a failed batch.
	RetryDelay time.Duration
	// MaxBatches stops the run after this many requests (0 = until done).
	MaxBatches int
	// Formatter post-processes every candidate before validation.
	Formatter func(string) string
	// OnProgress is called after each batch with accepted and corpus totals.
	OnProgress func(done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
	// Verbose logs prompts and raw responses.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// Summary reports what a Run did.
type Summary struct {
	Batches       int // requests sent
	FailedBatches int // requests whose response could not be used at all
	Accepted      int // candidates accepted into the checkpoint
	Rejected      int // candidates refused by the validator
	Missing       int // entries the response did not assign
	Quarantined   int // hashes quarantined at the end of the run
	Pending       int // hashes still pending at the end of the run
	Interrupted   bool
}

// Orchestrator translates the pending entries of one checkpoint. It is not
// safe to run two orchestrators against the same checkpoint file.
type Orchestrator struct {
	corpus    *corpus.Corpus
	ckpt      *checkpoint.Checkpoint
	validator *validate.Validator
	client    Client
	opts      Options
}

// New returns an orchestrator. A nil validator accepts every well-formed
// candidate.
func New(c *corpus.Corpus, cp *checkpoint.Checkpoint, v *validate.Validator, client Client, opts Options) *Orchestrator {
	if v == nil {
		v = validate.New(nil)
	}
	return &Orchestrator{corpus: c, ckpt: cp, validator: v, client: client, opts: opts}
}

// batchFailure is a batch that produced no usable candidates. Its entries
// stay pending and no attempt is charged to them.
type batchFailure struct {
	stage string
	err   error
}

func (e *batchFailure) Error() string { return e.stage + ": " + e.err.Error() }
func (e *batchFailure) Unwrap() error { return e.err }

type batchResult struct {
	accepted, rejected, missing int
}

// Run processes batches until nothing is pending, MaxBatches is reached or
// ctx is canceled. The checkpoint is saved once up front, so pruning done
// by checkpoint.Load reaches the disk before any request, and again after
// every batch. Cancellation is not an error: Run returns with
// Summary.Interrupted set and the checkpoint saved.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := o.ckpt.Save(); err != nil {
		return sum, fmt.Errorf("saving checkpoint: %w", err)
	}

	total := o.corpus.Len()
	size := o.opts.effectiveBatchSize()
	for {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		pending := o.ckpt.Pending()
		if len(pending) == 0 {
			break
		}
		if o.opts.MaxBatches > 0 && sum.Batches >= o.opts.MaxBatches {
			break
		}
		batch := pending[:min(size, len(pending))]
		sum.Batches++
		if o.opts.Verbose {
			o.opts.log("Batch %d: %d of %d pending entries", sum.Batches, len(batch), len(pending))
		}

		res, err := o.runBatch(ctx, batch)
		if err != nil && ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		if err != nil {
			sum.FailedBatches++
			o.opts.logError("Batch %d failed, %d entries stay pending: %v", sum.Batches, len(batch), err)
		}
		sum.Accepted += res.accepted
		sum.Rejected += res.rejected
		sum.Missing += res.missing

		if err := o.ckpt.Save(); err != nil {
			return sum, fmt.Errorf("saving checkpoint: %w", err)
		}
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(o.ckpt.Len(), total)
		}

		if err != nil && o.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.RetryDelay):
			}
		}
	}

	// The in-flight batch may have been cut short; keep what was accepted.
	if sum.Interrupted {
		if err := o.ckpt.Save(); err != nil {
			return sum, fmt.Errorf("saving checkpoint: %w", err)
		}
	}
	sum.Pending = len(o.ckpt.Pending())
	sum.Quarantined = len(o.ckpt.Quarantined())
	return sum, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, batch []string) (batchResult, error) {
	var res batchResult

	sources := make([]string, len(batch))
	names := make([]string, len(batch))
	for i, h := range batch {
		src, ok := o.corpus.Lookup(h)
		if !ok {
			return res, &batchFailure{stage: "lookup", err: fmt.Errorf("hash %s not in corpus", h)}
		}
		sources[i] = src
		names[i] = VarName(i)
	}
	prompt := BuildPrompt(o.opts.Prompt, sources)
	if o.opts.Verbose {
		o.opts.log("Prompt:\n%s", prompt)
	}

	timeout := o.opts.effectiveTimeout()
	rctx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := o.client.Complete(rctx, prompt)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return res, &batchFailure{stage: "request", err: fmt.Errorf("timed out after %s", timeout)}
		}
		return res, &batchFailure{stage: "request", err: err}
	}
	if o.opts.Verbose {
		o.opts.log("Response:\n%s", resp)
	}

	code, err := ExtractCodeBlock(resp)
	if err != nil {
		return res, &batchFailure{stage: "response", err: err}
	}
	values, err := ParseAssignments(code, names)
	if err != nil {
		return res, &batchFailure{stage: "response", err: err}
	}

	for i, h := range batch {
		cand, ok := values[names[i]]
		if !ok {
			res.missing++
			o.charge(h, "no value for %s", names[i])
			continue
		}
		if o.opts.Formatter != nil {
			cand = o.opts.Formatter(cand)
		}
		if err := o.validator.Check(sources[i], cand); err != nil {
			res.rejected++
			o.charge(h, "%v", err)
			continue
		}
		o.ckpt.Accept(h, cand)
		res.accepted++
	}
	return res, nil
}

// charge counts a failed attempt for h and logs it.
func (o *Orchestrator) charge(h string, format string, args ...any) {
	n, quarantined := o.ckpt.RecordFailure(h)
	reason := fmt.Sprintf(format, args...)
	if quarantined {
		o.opts.logError("%s quarantined after %d attempts: %s", h, n, reason)
		return
	}
	o.opts.log("%s rejected (attempt %d): %s", h, n, reason)
}
