package pipeline

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/printd/printd/dispatch"
	"github.com/printd/printd/internal/dlog"
	"github.com/printd/printd/job"
	"github.com/printd/printd/printer"
)

// workBuffer is the WorkCh channel capacity: generous enough that a
// burst of children exiting together never blocks a watch goroutine on
// a full channel, without being large enough to hide a stuck event
// loop for long.
const workBuffer = 64

// Credentials is the unprivileged uid/gid filters run as (spec.md §4.4:
// "Children run as an unprivileged uid/gid (except the backend, which
// runs as root)").
type Credentials struct {
	UID, GID uint32
}

// Executor implements dispatch.Launcher by forking the filter chain
// and backend described by a dispatch.Plan, wiring pipes between them,
// and watching the shared status pipe to completion (spec.md §4.4,
// §4.5).
type Executor struct {
	Filter Credentials
	Log    dlog.Logger

	// Dispatcher is wired in after construction (it must already hold
	// a reference to this Executor as its Launcher, so the two are
	// connected post-construction rather than via constructor
	// parameters that would require a forward reference).
	Dispatcher *dispatch.Dispatcher
	Status     *StatusReader

	// WorkCh is how a job's watch goroutine hands its result back to
	// the single cooperative scheduler goroutine (spec.md §5, §9). The
	// caller running the event loop (internal/event.Loop) must drain
	// this channel; jobs and every field it reaches are otherwise only
	// ever touched from that one goroutine, so none of it needs a
	// mutex.
	WorkCh chan dispatch.Work

	jobs map[int]*runningJob
}

// NewExecutor returns an Executor ready to have its Dispatcher field
// set once the owning Dispatcher exists.
func NewExecutor(filter Credentials, log dlog.Logger) *Executor {
	if log == nil {
		log = dlog.Discard
	}
	return &Executor{
		Filter: filter,
		Log:    log,
		Status: &StatusReader{Log: log},
		WorkCh: make(chan dispatch.Work, workBuffer),
		jobs:   make(map[int]*runningJob),
	}
}

type runningJob struct {
	record  *job.Record
	printer *printer.Printer
	cmds    []*exec.Cmd
}

// Start implements dispatch.Launcher.
func (e *Executor) Start(r *job.Record, p *printer.Printer, plan dispatch.Plan) error {
	statusRead, statusWrite, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "pipeline: status pipe")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		statusRead.Close()
		statusWrite.Close()
		return errors.Wrap(err, "pipeline: open /dev/null")
	}
	defer devNull.Close()

	var cmds []*exec.Cmd
	var parentSideCloses []io.Closer
	cleanup := func() {
		for _, c := range parentSideCloses {
			c.Close()
		}
		statusWrite.Close()
		statusRead.Close()
	}

	currentInput := devNull
	for _, f := range plan.Chain {
		cmd := exec.Command(f.Program)
		cmd.Args = plan.Argv
		cmd.Env = plan.Env
		cmd.Stdin = currentInput
		cmd.Stderr = statusWrite

		pr, pw, perr := os.Pipe()
		if perr != nil {
			cleanup()
			return errors.Wrap(perr, "pipeline: filter pipe")
		}
		cmd.Stdout = pw
		applyFilterCredentials(cmd, e.Filter)

		cmds = append(cmds, cmd)
		parentSideCloses = append(parentSideCloses, pw)
		if currentInput != devNull {
			parentSideCloses = append(parentSideCloses, currentInput)
		}
		currentInput = pr
	}

	isBackend := false
	if isFileDevice(plan.DeviceURI) {
		out, operr := openDeviceFile(plan.DeviceURI)
		if operr != nil {
			cleanup()
			return errors.Wrap(operr, "pipeline: open device file")
		}
		if len(cmds) == 0 {
			go func() { io.Copy(out, currentInput); out.Close(); currentInput.Close() }()
		} else {
			cmds[len(cmds)-1].Stdout = out
			parentSideCloses = append(parentSideCloses, out)
		}
	} else if plan.DeviceURI != "" {
		backend := exec.Command(plan.DeviceURI)
		if len(plan.Argv) > 0 {
			backend.Args = append([]string{plan.DeviceURI}, plan.Argv[1:]...)
		}
		backend.Env = plan.Env
		backend.Stdin = currentInput
		backend.Stdout = devNull
		backend.Stderr = statusWrite
		applyBackendCredentials(backend)
		cmds = append(cmds, backend)
		isBackend = true
	}

	if len(cmds) > job.MaxChildren {
		cleanup()
		return errors.Errorf("pipeline: chain of %d processes exceeds %d", len(cmds), job.MaxChildren)
	}

	procs := make([]job.ChildProc, len(cmds))
	for i, cmd := range cmds {
		if err := startWithUmask(cmd); err != nil {
			for _, started := range cmds[:i] {
				if started.Process != nil {
					started.Process.Kill()
				}
			}
			cleanup()
			return errors.Wrapf(err, "pipeline: start %s", cmd.Path)
		}
		procs[i] = job.ChildProc{Pid: cmd.Process.Pid, IsBackend: isBackend && i == len(cmds)-1}
	}

	statusWrite.Close()
	for _, c := range parentSideCloses {
		c.Close()
	}

	r.Procs = procs
	r.StatusPipe = statusRead

	// e.jobs is only ever read or written from the single cooperative
	// scheduler goroutine: Start and Stop are dispatcher-tick callbacks,
	// and watch's own goroutine never touches it directly, only through
	// a Work closure posted to WorkCh (spec.md §5, §9).
	rj := &runningJob{record: r, printer: p, cmds: cmds}
	e.jobs[r.ID] = rj

	go e.watch(rj, statusRead)
	return nil
}

// Stop implements dispatch.Launcher (spec.md §4.4 "stop_job": "Send
// SIGKILL to every still-live child if force, otherwise SIGTERM").
func (e *Executor) Stop(r *job.Record, force bool) {
	rj := e.jobs[r.ID]
	if rj == nil {
		return
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	for _, cmd := range rj.cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(sig)
		}
	}
}

// watch drains the status pipe until EOF and reaps every child. Both
// are blocking I/O calls a background goroutine is free to make; what
// it must not do is touch rj.record, e.jobs, or the dispatcher
// directly, since those belong to the single cooperative scheduler
// goroutine (spec.md §5, §9). So watch only collects results locally
// and posts one closure to WorkCh that applies them; it never mutates
// shared state itself.
func (e *Executor) watch(rj *runningJob, statusRead *os.File) {
	reader := bufio.NewReader(statusRead)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if err != nil {
			break
		}
	}
	statusRead.Close()

	outcome := job.OutcomeSuccess
	for i, cmd := range rj.cmds {
		err := cmd.Wait()
		if err == nil {
			continue
		}
		if i < len(rj.record.Procs) && rj.record.Procs[i].IsBackend {
			outcome = job.OutcomeBackendFault
		} else if outcome == job.OutcomeSuccess {
			outcome = job.OutcomeFilterFault
		}
	}

	e.WorkCh <- func() {
		for _, line := range lines {
			e.Status.ConsumeLine(rj.record, line)
		}
		rj.record.WorstOutcome = outcome
		delete(e.jobs, rj.record.ID)
		e.onEOF(rj.record, rj.printer, outcome)
	}
}

// onEOF implements spec.md §4.5's three disposition branches.
func (e *Executor) onEOF(r *job.Record, p *printer.Printer, outcome job.Outcome) {
	d := e.Dispatcher
	switch outcome {
	case job.OutcomeBackendFault:
		d.StopJob(r, false)
		r.State = job.EState.Pending()
		_ = d.Store.Persist(r)
	case job.OutcomeFilterFault:
		r.CurrentFile++
		if r.CurrentFile < r.NumFiles {
			_ = d.StartJobOnPrinter(r, p)
		} else {
			final := job.EState.Cancelled()
			if d.Store.KeepHistory {
				final = job.EState.Aborted()
			}
			_ = d.Store.Finish(r.ID, final, false)
		}
	default:
		r.CurrentFile++
		if r.CurrentFile < r.NumFiles {
			_ = d.StartJobOnPrinter(r, p)
		} else {
			final := job.EState.Cancelled()
			if d.Store.KeepHistory {
				final = job.EState.Completed()
			}
			_ = d.Store.Finish(r.ID, final, false)
		}
	}
	d.CheckJobs(time.Now())
}

func isFileDevice(deviceURI string) bool {
	return strings.HasPrefix(deviceURI, "file:")
}

// openDeviceFile implements spec.md §4.4's device-file open rule.
// Ordinary files are created if absent (O_WRONLY|O_CREAT|O_TRUNC,
// 0600); device nodes under /dev are required to pre-exist, so the
// create flag is withheld for them ("for file:/dev/* ... refuse if
// missing" — read as "do not create").
func openDeviceFile(deviceURI string) (*os.File, error) {
	path := strings.TrimPrefix(deviceURI, "file:")
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if strings.HasPrefix(path, "/dev/") {
		flags = os.O_WRONLY
	}
	return os.OpenFile(path, flags, 0600)
}

// applyFilterCredentials drops a filter child to the unprivileged
// uid/gid with no supplementary groups and its own process group
// (spec.md §4.4: "unprivileged uid/gid", "clears supplementary groups").
func applyFilterCredentials(cmd *exec.Cmd, creds Credentials) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Credential: &syscall.Credential{
			Uid:         creds.UID,
			Gid:         creds.GID,
			Groups:      []uint32{},
			NoSetGroups: false,
		},
	}
}

// applyBackendCredentials leaves the backend running as root (spec.md
// §4.4: "except the backend, which runs as root"), isolated in its own
// process group like every other child.
func applyBackendCredentials(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// startWithUmask starts cmd under umask 077 (spec.md §4.4 child setup:
// "sets umask 077"). Umask is process-wide, so it is narrowed around
// the fork+exec and restored immediately after; this is safe because
// the dispatcher and executor run on the single cooperative scheduler
// goroutine (spec.md §5).
func startWithUmask(cmd *exec.Cmd) error {
	old := unix.Umask(0o077)
	defer unix.Umask(old)
	return cmd.Start()
}
