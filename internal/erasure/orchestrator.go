// Package erasure sequences format, overwrite, HPA/DCO removal and audit
// logging for a single removable device.
package erasure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"usbzero/internal/config"
	"usbzero/internal/failure"
	"usbzero/internal/logging"
	"usbzero/internal/reporting"
	"usbzero/internal/security"
	"usbzero/internal/system"
	"usbzero/internal/wipe"
)

// Progress checkpoints. Overwrite passes share the span between
// progressFormatted and progressOverwritten.
const (
	progressFormatted   = 0.1
	progressOverwritten = 0.9
	progressHpaDco      = 0.95
	progressLogWritten  = 0.99
)

// Enough for every event of the longest job, so the worker never blocks.
const eventBuffer = 2*wipe.MaxPasses + 16

// Request is the user input for a job. Values are validated before anything runs.
type Request struct {
	Device       string // path or short name
	Algorithm    string
	Passes       string // blank means the algorithm default
	RemoveHpaDco bool
	WriteLog     bool
}

// Confirmation is what the user is asked to approve.
type Confirmation struct {
	Device       system.DeviceDescriptor
	Model        string
	Algorithm    wipe.Algorithm
	PassCount    int
	RemoveHpaDco bool
}

// Confirmer returns true only on an explicit affirmative answer.
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, c Confirmation) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, c Confirmation) (bool, error) { return f(ctx, c) }

// HpaDcoRemover is satisfied by *hpa.Manager.
type HpaDcoRemover interface {
	CheckAvailable(ctx context.Context) error
	Remove(ctx context.Context, dev system.DeviceDescriptor) (bool, error)
}

// AuditSink is satisfied by *reporting.AuditWriter.
type AuditSink interface {
	Write(rec reporting.AuditRecord) (string, error)
}

// Deps wires the orchestrator to its collaborators.
type Deps struct {
	Config     *config.Config
	Enumerator system.Enumerator
	Platform   wipe.Platform
	Privilege  security.PrivilegeChecker
	HpaDco     HpaDcoRemover
	Audit      AuditSink
	Confirmer  Confirmer
	Logger     *logging.EnterpriseLogger
	Now        func() time.Time
	NewID      func() uuid.UUID
}

// Event is a progress notification for the sink.
type Event struct {
	Time     time.Time
	State    State
	Pass     int
	Message  string
	Progress float64
	Warning  bool
	Err      error
}

// Job is owned by the worker goroutine until it finishes.
type Job struct {
	ID          uuid.UUID
	Device      system.DeviceDescriptor
	Model       string
	Params      wipe.WipeParameters
	CurrentPass int
	Status      State
	Artifacts   []string
}

// Report is the outcome of a finished job.
type Report struct {
	Job           Job
	History       []Step
	Declined      bool
	HpaDcoCleaned bool
	LogPath       string
	Warnings      []error
	Err           error
}

// Succeeded reports whether the job reached Completed.
func (r Report) Succeeded() bool { return r.Job.Status == StateCompleted }

// Orchestrator runs at most one job at a time.
type Orchestrator struct {
	deps   Deps
	engine *wipe.WipeEngine

	mu       sync.Mutex
	inFlight bool
}

func New(deps Deps) *Orchestrator {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.New
	}
	o := &Orchestrator{deps: deps}
	if deps.Platform != nil {
		o.engine = wipe.NewWipeEngine(deps.Platform, deps.Logger)
	}
	return o
}

// Busy reports whether a job is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Handle gives access to a running job.
type Handle struct {
	events chan Event
	done   chan struct{}
	report Report
}

// Events is closed after the final event.
func (h *Handle) Events() <-chan Event { return h.events }

// Wait blocks until the job ends and returns its report.
func (h *Handle) Wait() Report {
	<-h.done
	return h.report
}

// Start launches a job on a worker goroutine. It fails with ErrJobInFlight
// while another job is running.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Handle, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, cerr.WithStack(failure.ErrJobInFlight)
	}
	o.inFlight = true
	o.mu.Unlock()

	h := &Handle{
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go o.work(ctx, req, h)
	return h, nil
}

// Run starts a job and forwards its events to sink until it ends.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink func(Event)) (Report, error) {
	h, err := o.Start(ctx, req)
	if err != nil {
		return Report{}, err
	}
	for ev := range h.Events() {
		if sink != nil {
			sink(ev)
		}
	}
	return h.Wait(), nil
}

type run struct {
	o      *Orchestrator
	h      *Handle
	m      *machine
	job    Job
	report Report
}

func (o *Orchestrator) work(ctx context.Context, req Request, h *Handle) {
	r := &run{o: o, h: h, m: newMachine(), job: Job{ID: o.deps.NewID(), Status: StateIdle}}

	var final Event
	func() {
		defer func() {
			if p := recover(); p != nil {
				err := cerr.Newf("erasure worker panic: %v", p)
				final = r.fail(err)
			}
		}()
		final = r.execute(ctx, req)
	}()

	r.report.Job = r.job
	r.report.History = r.m.History()
	h.report = r.report

	o.mu.Lock()
	o.inFlight = false
	o.mu.Unlock()

	h.events <- final
	close(h.events)
	close(h.done)
}

// execute returns the final event; every other event is emitted directly.
func (r *run) execute(ctx context.Context, req Request) Event {
	log := r.o.deps.Logger

	if err := r.enter(Step{State: StateValidating}); err != nil {
		return r.fail(err)
	}
	r.emit(Event{Message: "Validating selection"})

	dev, model, params, err := r.validate(ctx, req)
	if err != nil {
		return r.fail(err)
	}
	r.job.Device, r.job.Model, r.job.Params = dev, model, params
	log.Log("INFO", "Задание проверено", "job", r.job.ID, "device", dev.Path, "model", model,
		"algorithm", params.Algorithm, "passes", params.PassCount, "hpa_dco", params.RemoveHpaDco)

	if err := r.enter(Step{State: StateConfirming}); err != nil {
		return r.fail(err)
	}
	r.emit(Event{Message: fmt.Sprintf("Awaiting confirmation to erase %s", dev.Label())})
	if !r.confirm(ctx) {
		if err := r.enter(Step{State: StateIdle}); err != nil {
			return r.fail(err)
		}
		r.report.Declined = true
		log.Log("INFO", "Операция отменена пользователем", "job", r.job.ID, "device", dev.Path)
		return r.event(Event{Message: "Erasure cancelled"})
	}

	// Отмена вызывающего больше не доходит до разрушающих шагов
	dctx := context.WithoutCancel(ctx)

	if err := r.enter(Step{State: StateFormatting}); err != nil {
		return r.fail(err)
	}
	r.emit(Event{Message: fmt.Sprintf("Formatting %s", dev.Path)})
	if err := r.o.engine.Format(dctx, dev); err != nil {
		return r.fail(err)
	}
	r.emit(Event{Message: "Format complete", Progress: progressFormatted})

	artifacts, err := r.o.engine.Overwrite(dctx, dev, params, wipe.PassHooks{
		Started: func(i int) error {
			if err := r.enter(Step{State: StateOverwriting, Pass: i}); err != nil {
				return err
			}
			r.job.CurrentPass = i
			r.emit(Event{Pass: i, Message: fmt.Sprintf("Pass %d/%d started", i+1, params.PassCount), Progress: passProgress(i, params.PassCount)})
			return nil
		},
		Finished: func(i int, _ string) {
			r.emit(Event{Pass: i, Message: fmt.Sprintf("Pass %d/%d complete", i+1, params.PassCount), Progress: passProgress(i+1, params.PassCount)})
		},
	})
	r.job.Artifacts = artifacts
	if err != nil {
		return r.fail(err)
	}

	if params.RemoveHpaDco {
		if err := r.enter(Step{State: StateRemovingHpaDco}); err != nil {
			return r.fail(err)
		}
		r.emit(Event{Message: fmt.Sprintf("Removing HPA/DCO on %s", dev.Path), Progress: progressOverwritten})
		cleaned, err := r.o.deps.HpaDco.Remove(dctx, dev)
		if err != nil {
			if !cerr.Is(err, failure.ErrHpaDcoFailed) {
				err = cerr.Mark(err, failure.ErrHpaDcoFailed)
			}
			r.warn(err, "HPA/DCO removal failed")
		} else {
			r.report.HpaDcoCleaned = cleaned
			r.emit(Event{Message: "HPA/DCO removed", Progress: progressHpaDco})
		}
	}

	if err := r.enter(Step{State: StateWritingLog}); err != nil {
		return r.fail(err)
	}
	if params.WriteLog && r.o.deps.Audit != nil {
		r.emit(Event{Message: "Writing audit log", Progress: progressHpaDco})
		rec := reporting.NewAuditRecord(r.job.ID, dev.Path, r.o.deps.Now(), params.Algorithm.DisplayName(),
			params.PassCount, r.job.Artifacts, r.report.HpaDcoCleaned, model)
		path, err := r.o.deps.Audit.Write(rec)
		if err != nil {
			if !cerr.Is(err, failure.ErrLogWriteFailed) {
				err = cerr.Mark(err, failure.ErrLogWriteFailed)
			}
			r.warn(err, "Audit log could not be written")
		} else {
			r.report.LogPath = path
			r.emit(Event{Message: fmt.Sprintf("Audit log saved to %s", path), Progress: progressLogWritten})
		}
	}

	if err := r.enter(Step{State: StateCompleted}); err != nil {
		return r.fail(err)
	}
	log.Log("INFO", "Стирание завершено", "job", r.job.ID, "device", dev.Path, "passes", len(r.job.Artifacts), "warnings", len(r.report.Warnings))
	return r.event(Event{Message: "Erasure complete", Progress: 1})
}

func (r *run) validate(ctx context.Context, req Request) (system.DeviceDescriptor, string, wipe.WipeParameters, error) {
	var none system.DeviceDescriptor
	cfg := r.o.deps.Config

	id := strings.TrimSpace(req.Device)
	if id == "" || id == system.NoDeviceSentinel {
		return none, "", wipe.WipeParameters{}, failure.Invalid("no device selected")
	}

	algName := req.Algorithm
	if strings.TrimSpace(algName) == "" {
		algName = cfg.Wipe.DefaultAlgorithm
	}
	alg, err := wipe.ParseAlgorithm(algName)
	if err != nil {
		return none, "", wipe.WipeParameters{}, err
	}
	passes, err := wipe.ParsePassCount(req.Passes)
	if err != nil {
		return none, "", wipe.WipeParameters{}, err
	}
	if passes == 0 && cfg.Wipe.DefaultPasses > 0 {
		if _, fixed := alg.FixedPasses(); !fixed {
			passes = cfg.Wipe.DefaultPasses
		}
	}
	params, err := wipe.NewWipeParameters(alg, passes, req.RemoveHpaDco, req.WriteLog)
	if err != nil {
		return none, "", wipe.WipeParameters{}, err
	}

	if r.o.deps.Platform == nil || r.o.engine == nil {
		return none, "", params, failure.Invalid("erasure is not supported on this platform")
	}
	if r.o.deps.Enumerator == nil {
		return none, "", params, failure.Invalid("no device enumerator")
	}

	devices := r.o.deps.Enumerator.ListRemovableDevices(ctx)
	if len(devices) == 0 {
		return none, "", params, failure.Invalid("no removable devices found")
	}
	dev, ok := system.FindDevice(devices, id)
	if !ok {
		return none, "", params, failure.Invalid("device %s is not a currently attached removable device", id)
	}
	if security.ShouldSkipDevice(cfg, dev) {
		return none, "", params, failure.Invalid("device %s is excluded from erasure", dev.Path)
	}

	if cfg.Security.RequirePrivilege || params.RemoveHpaDco {
		if r.o.deps.Privilege == nil {
			return none, "", params, cerr.Wrap(failure.ErrPrivilegeDenied, "no privilege checker configured")
		}
		if _, err := security.RequirePrivilege(ctx, r.o.deps.Privilege); err != nil {
			return none, "", params, err
		}
	}

	if params.RemoveHpaDco {
		if !r.o.deps.Platform.SupportsHpaDco() || r.o.deps.HpaDco == nil {
			return none, "", params, cerr.Wrapf(failure.ErrHpaDcoUnavailable, "HPA/DCO removal is not supported on %s", r.o.deps.Platform.Name())
		}
		if err := r.o.deps.HpaDco.CheckAvailable(ctx); err != nil {
			if !cerr.Is(err, failure.ErrPrivilegeDenied) && !cerr.Is(err, failure.ErrHpaDcoUnavailable) {
				err = cerr.Mark(err, failure.ErrHpaDcoUnavailable)
			}
			return none, "", params, err
		}
	}

	model := r.o.deps.Enumerator.ResolveModel(ctx, dev)
	if model == "" {
		model = system.UnknownModel
	}
	return dev, model, params, nil
}

func (r *run) confirm(ctx context.Context) bool {
	if r.o.deps.Confirmer == nil {
		return false
	}
	ok, err := r.o.deps.Confirmer.Confirm(ctx, Confirmation{
		Device:       r.job.Device,
		Model:        r.job.Model,
		Algorithm:    r.job.Params.Algorithm,
		PassCount:    r.job.Params.PassCount,
		RemoveHpaDco: r.job.Params.RemoveHpaDco,
	})
	if err != nil {
		r.o.deps.Logger.Log("WARN", "Подтверждение не получено", "error", err)
		return false
	}
	return ok && ctx.Err() == nil
}

func (r *run) enter(s Step) error {
	if err := r.m.Transition(s, r.job.Params.PassCount); err != nil {
		return cerr.WithStack(err)
	}
	r.job.Status = s.State
	return nil
}

func (r *run) fail(err error) Event {
	r.report.Err = err
	if tErr := r.enter(Step{State: StateFailed}); tErr != nil {
		r.o.deps.Logger.Log("ERROR", "Переход в Failed невозможен", "error", tErr)
		r.job.Status = StateFailed
	}
	r.o.deps.Logger.Log("ERROR", "Стирание не удалось", "job", r.job.ID, "device", r.job.Device.Path,
		"error", err, "diagnostic", failure.Diagnostic(err))
	return r.event(Event{Message: fmt.Sprintf("Erasure failed: %v", err), Err: err})
}

func (r *run) warn(err error, msg string) {
	r.report.Warnings = append(r.report.Warnings, err)
	r.o.deps.Logger.Log("WARN", msg, "job", r.job.ID, "error", err, "diagnostic", failure.Diagnostic(err))
	r.emit(Event{Message: fmt.Sprintf("%s: %v", msg, err), Warning: true, Err: err})
}

// event fills in state and time. Pass is kept from the caller.
func (r *run) event(ev Event) Event {
	ev.Time = r.o.deps.Now()
	ev.State = r.job.Status
	if ev.Pass == 0 && r.job.Status == StateOverwriting {
		ev.Pass = r.job.CurrentPass
	}
	return ev
}

func (r *run) emit(ev Event) {
	r.h.events <- r.event(ev)
}

func passProgress(completed, total int) float64 {
	return progressFormatted + (progressOverwritten-progressFormatted)*wipe.Progress(completed, total)
}
