package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cosmossdk.io/log"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/tower-sdk/store"
	"github.com/blockberries/tower-sdk/types"
)

// Mode selects how a Sequencer dispatches a batch.
type Mode int

const (
	// ModeSequential awaits each send before issuing the next and stops at
	// the first failure.
	ModeSequential Mode = iota

	// ModeUnordered issues every send concurrently. Each call is attempted at
	// most once and completion order is unspecified. Against a server with
	// strict per-account nonces, concurrent sends from one account can be
	// refused; use it for independent accounts or idempotent commands.
	ModeUnordered

	// ModeLanes sends each account's calls in batch order and different
	// accounts' calls concurrently, level by level (see Schedule). After a
	// failure the account's remaining calls fail with ErrSkipped.
	ModeLanes
)

func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeUnordered:
		return "unordered"
	case ModeLanes:
		return "lanes"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "sequential", "unordered" or "lanes". The empty string is
// sequential.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "sequential":
		return ModeSequential, nil
	case "unordered":
		return ModeUnordered, nil
	case "lanes":
		return ModeLanes, nil
	default:
		return 0, fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// Call is one transaction in a batch.
type Call struct {
	Params  []uint64
	Account types.AccountID
}

// Result is the outcome of the call at Index.
type Result struct {
	Index   int
	Receipt *Receipt
	Err     error
}

// BatchError reports a failed call by its position in the batch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("call %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Sequencer dispatches batches of calls in an explicit Mode and optionally
// journals every outcome.
type Sequencer struct {
	dispatcher Dispatcher
	mode       Mode
	limit      int
	journal    *store.Journal
	logger     log.Logger
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithJournal records each dispatched transaction.
func WithJournal(j *store.Journal) SequencerOption {
	return func(s *Sequencer) { s.journal = j }
}

// WithConcurrency caps in-flight sends in ModeUnordered and ModeLanes. Zero
// means no cap.
func WithConcurrency(n int) SequencerOption {
	return func(s *Sequencer) { s.limit = n }
}

// WithSequencerLogger sets the logger.
func WithSequencerLogger(l log.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = l }
}

// NewSequencer creates a sequencer over d.
func NewSequencer(d Dispatcher, mode Mode, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{dispatcher: d, mode: mode, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "sequencer", "mode", mode.String())
	return s
}

// Run dispatches calls.
//
// In ModeSequential the results cover the calls attempted, in order, and the
// error is a *BatchError for the first failure. In ModeUnordered there is one
// result per call, indexed like calls, and the error joins a *BatchError for
// every failure. ModeLanes reports like ModeUnordered.
func (s *Sequencer) Run(ctx context.Context, calls []Call) ([]Result, error) {
	switch s.mode {
	case ModeSequential:
		return s.runSequential(ctx, calls)
	case ModeUnordered:
		return s.runUnordered(ctx, calls)
	case ModeLanes:
		return s.runLanes(ctx, calls)
	default:
		return nil, fmt.Errorf("unknown dispatch mode %d", int(s.mode))
	}
}

func (s *Sequencer) runSequential(ctx context.Context, calls []Call) ([]Result, error) {
	results := make([]Result, 0, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return results, &BatchError{Index: i, Err: err}
		}
		r := s.dispatch(ctx, i, call)
		results = append(results, r)
		if r.Err != nil {
			return results, &BatchError{Index: i, Err: r.Err}
		}
	}
	return results, nil
}

func (s *Sequencer) runUnordered(ctx context.Context, calls []Call) ([]Result, error) {
	results := make([]Result, len(calls))

	// no WithContext: one failure must not cancel sends in flight
	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = s.dispatch(ctx, i, call)
			return nil
		})
	}
	_ = g.Wait()
	return results, joinFailures(results)
}

func (s *Sequencer) runLanes(ctx context.Context, calls []Call) ([]Result, error) {
	results := make([]Result, len(calls))
	levels := Schedule(calls)
	s.logger.Debug("scheduled batch", "calls", len(calls), "levels", len(levels), "parallelism", Parallelism(levels))

	failed := make(map[types.AccountID]bool)
	for _, level := range levels {
		var g errgroup.Group
		if s.limit > 0 {
			g.SetLimit(s.limit)
		}
		for _, i := range level.Calls {
			if failed[types.NormalizeAccount(string(calls[i].Account))] {
				results[i] = Result{Index: i, Err: ErrSkipped}
				continue
			}
			g.Go(func() error {
				results[i] = s.dispatch(ctx, i, calls[i])
				return nil
			})
		}
		_ = g.Wait()

		for _, i := range level.Calls {
			if results[i].Err != nil {
				failed[types.NormalizeAccount(string(calls[i].Account))] = true
			}
		}
	}
	return results, joinFailures(results)
}

func joinFailures(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, &BatchError{Index: r.Index, Err: r.Err})
		}
	}
	return errors.Join(errs...)
}

func (s *Sequencer) dispatch(ctx context.Context, i int, call Call) Result {
	receipt, err := s.dispatcher.SendTransaction(ctx, call.Params, call.Account)
	if err != nil {
		s.logger.Error("call failed", "index", i, "account", call.Account, "err", err)
	}
	s.record(receipt, err)
	return Result{Index: i, Receipt: receipt, Err: err}
}

func (s *Sequencer) record(receipt *Receipt, sendErr error) {
	if s.journal == nil {
		return
	}

	var entry store.Entry
	switch {
	case sendErr == nil:
		entry = store.NewEntry(receipt.Transaction())
		entry.Status = store.StatusAccepted
		if raw, err := json.Marshal(receipt); err == nil {
			entry.Receipt = raw
		}
	default:
		var se *SendError
		if !errors.As(sendErr, &se) {
			// nothing was signed, so there is nothing to journal
			return
		}
		entry = store.NewEntry(se.Tx)
		entry.Status = store.StatusFailed
		if errors.Is(sendErr, types.ErrRejected) {
			entry.Status = store.StatusRejected
		}
		entry.Error = sendErr.Error()
	}

	if err := s.journal.Record(entry); err != nil {
		s.logger.Error("journal write failed", "hash", entry.Hash, "err", err)
	}
}
