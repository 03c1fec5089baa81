// Package migration runs an ordered catalog plan against a document store,
// one script at a time, and keeps the history ledger current.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/mongorun/internal/backup"
	"github.com/loykin/mongorun/internal/catalog"
	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/docstore"
	"github.com/loykin/mongorun/internal/store"
	"github.com/loykin/mongorun/internal/util"
	"go.uber.org/multierr"
)

// State of a run.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome of one script within a run.
type Outcome string

const (
	Executed           Outcome = "executed"
	SkippedEnvironment Outcome = "skipped_environment"
	SkippedApplied     Outcome = "skipped_applied"
	Failed             Outcome = "failed"
	// Pending is reported by Plan for scripts a run would execute.
	Pending Outcome = "pending"
)

// Result describes what happened to one script.
type Result struct {
	ScriptID         string        `json:"script_id"`
	Collection       string        `json:"collection"`
	Ticket           string        `json:"ticket"`
	Script           string        `json:"script"`
	Outcome          Outcome       `json:"outcome"`
	Success          bool          `json:"success"`
	Elapsed          time.Duration `json:"elapsed"`
	BackupCollection string        `json:"backup_collection,omitempty"`
}

// Report summarizes a run. Results hold every script reached, in order.
type Report struct {
	RunID   string   `json:"run_id"`
	State   State    `json:"state"`
	Results []Result `json:"results"`
}

// Runner executes plans sequentially. A Runner performs a single run.
type Runner struct {
	DB      docstore.Database
	Store   store.Store
	Backups *backup.Manager
	// Env is the run environment compared with each script's RunAt tags.
	Env string

	now   func() time.Time
	state State
}

// NewRunner wires a runner over db and ledger st for environment env.
func NewRunner(db docstore.Database, st store.Store, env string) *Runner {
	return &Runner{
		DB:      db,
		Store:   st,
		Backups: backup.NewManager(db),
		Env:     util.TrimAndLower(env),
		now:     time.Now,
	}
}

// State returns the current run state.
func (r *Runner) State() State { return r.state }

// Run executes plan. It stops at the first failing script after recording
// it; the returned error is an *ExecutionError.
func (r *Runner) Run(ctx context.Context, plan catalog.Plan) (*Report, error) {
	if r.state != NotStarted {
		return nil, fmt.Errorf("runner already used: state %s", r.state)
	}
	if r.DB == nil || r.Store == nil {
		return nil, NewConfigurationError(errors.New("runner requires a database and a history store"))
	}
	if r.Backups == nil {
		r.Backups = backup.NewManager(r.DB)
	}
	if r.now == nil {
		r.now = time.Now
	}

	report := &Report{RunID: uuid.NewString()}
	logger := common.GetLogger().WithComponent("runner").WithRun(report.RunID)
	r.state = Running
	report.State = r.state
	logger.Info("migration run started", "environment", r.Env, "groups", len(plan.Groups), "scripts", plan.Len())

	for _, s := range plan.Scripts() {
		res, err := r.runScript(ctx, logger, s)
		report.Results = append(report.Results, res)
		if err != nil {
			r.state = Aborted
			report.State = r.state
			logger.Error("migration run aborted", "error", err, "script_id", s.ID)
			return report, err
		}
	}

	r.state = Completed
	report.State = r.state
	logger.Info("migration run completed", "executed", report.count(Executed),
		"skipped", report.count(SkippedApplied)+report.count(SkippedEnvironment))
	return report, nil
}

func (r *Runner) runScript(ctx context.Context, runLogger *common.Logger, s catalog.Script) (Result, error) {
	res := Result{ScriptID: s.ID, Collection: s.Collection, Ticket: s.Options.Ticket, Script: s.Name}
	logger := runLogger.WithCollection(s.Collection).WithScript(s.ID, s.Options.Ticket, s.Name)

	if !s.AllowedIn(r.Env) {
		res.Outcome = SkippedEnvironment
		logger.Info("skip script, environment not allowed", "environment", r.Env, "run_at", s.Options.RunAt)
		return res, nil
	}

	if !s.Options.RunAlways {
		done, err := r.Store.HasSucceeded(ctx, s.ID)
		if err != nil {
			res.Outcome = Failed
			return res, &ExecutionError{Kind: ErrHistoryStore, ScriptID: s.ID, Err: err}
		}
		if done {
			res.Outcome = SkippedApplied
			res.Success = true
			logger.Info("skip script, already applied")
			return res, nil
		}
	}

	if s.Options.AutoBackup {
		b, err := r.Backups.Backup(ctx, backup.Request{
			Collection:     s.Collection,
			Ticket:         s.Options.Ticket,
			TargetDatabase: s.Options.TargetBackupDatabase,
		})
		if err != nil {
			res.Outcome = Failed
			return res, &ExecutionError{Kind: ErrBackup, ScriptID: s.ID, Err: err}
		}
		res.BackupCollection = b.Collection
	}

	start := r.now()
	var failure *ExecutionError
	err := safeInvoke(ctx, r.DB, s)
	logger.Info("script invoked", "handle", s.Handle.String(), "error", err)
	if err != nil {
		failure = &ExecutionError{Kind: ErrInvocation, ScriptID: s.ID, Err: err}
	} else {
		ok, verr := safeVerify(ctx, r.DB, s)
		switch {
		case verr != nil:
			failure = &ExecutionError{Kind: ErrVerification, ScriptID: s.ID, Err: verr}
		case !ok:
			failure = &ExecutionError{Kind: ErrVerification, ScriptID: s.ID,
				Err: fmt.Errorf("verification routine %q returned false", s.TestMethod())}
		}
		if s.Verified() {
			logger.Info("script verified", "test_method", s.TestMethod(), "success", failure == nil)
		}
	}

	res.Elapsed = r.now().Sub(start)
	res.Success = failure == nil
	// the history write is not bound to the run context
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultHistoryWriteTimeout)
	rerr := r.Store.Record(wctx, store.Record{
		ID:          s.ID,
		Collection:  s.Collection,
		Ticket:      s.Options.Ticket,
		Description: s.Options.Description,
		IsSuccess:   res.Success,
		ElapsedTime: res.Elapsed.Milliseconds(),
	})
	cancel()
	if rerr != nil {
		if failure == nil {
			res.Success = false
			failure = &ExecutionError{Kind: ErrHistoryStore, ScriptID: s.ID, Err: rerr}
		} else {
			failure.Err = multierr.Append(failure.Err, fmt.Errorf("%w: %w", ErrHistoryStore, rerr))
		}
	}

	if failure != nil {
		res.Outcome = Failed
		return res, failure
	}
	res.Outcome = Executed
	logger.Info("script executed", "elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}

// Plan reports what Run would do without invoking, backing up or writing.
func (r *Runner) Plan(ctx context.Context, plan catalog.Plan) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), State: NotStarted}
	for _, s := range plan.Scripts() {
		res := Result{ScriptID: s.ID, Collection: s.Collection, Ticket: s.Options.Ticket, Script: s.Name, Outcome: Pending}
		switch {
		case !s.AllowedIn(r.Env):
			res.Outcome = SkippedEnvironment
		case !s.Options.RunAlways:
			done, err := r.Store.HasSucceeded(ctx, s.ID)
			if err != nil {
				return report, &ExecutionError{Kind: ErrHistoryStore, ScriptID: s.ID, Err: err}
			}
			if done {
				res.Outcome = SkippedApplied
				res.Success = true
			}
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func (rep *Report) count(o Outcome) int {
	n := 0
	for _, r := range rep.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Count returns how many results have outcome o.
func (rep *Report) Count(o Outcome) int { return rep.count(o) }

func safeInvoke(ctx context.Context, db docstore.Database, s catalog.Script) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	return s.Invoke(ctx, db)
}

func safeVerify(ctx context.Context, db docstore.Database, s catalog.Script) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, &PanicError{Value: p}
		}
	}()
	return s.Verify(ctx, db)
}
