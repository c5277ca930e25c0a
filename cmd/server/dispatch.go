package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/sirupsen/logrus"

	"github.com/nickyhof/DuckServe"
	"github.com/nickyhof/DuckServe/bundle"
	"github.com/nickyhof/DuckServe/core"
)

// DispatchOptions tunes command execution.
type DispatchOptions struct {
	// SlowQuery is the elapsed time above which a command is logged as a warning.
	SlowQuery time.Duration
	// Timeout bounds every command body. Zero means no timeout.
	Timeout time.Duration
}

// Dispatcher turns inbound frames into exactly one reply each. Command bodies
// run one at a time across all connections.
type Dispatcher struct {
	mu       sync.Mutex
	instance *DuckServe.Instance
	bundler  *bundle.Bundler
	opts     DispatchOptions
	log      logrus.FieldLogger
}

func NewDispatcher(instance *DuckServe.Instance, bundler *bundle.Bundler, opts DispatchOptions, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		instance: instance,
		bundler:  bundler,
		opts:     opts,
		log:      log,
	}
}

// Dispatch decodes and runs one frame. Failures of any kind are returned as an
// error reply; Dispatch never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, frame []byte) Reply {
	start := time.Now()

	cmd, err := core.DecodeCommand(frame)
	if err != nil {
		d.observe(connID, "invalid", start, err)
		return errorReply(err)
	}

	label := string(cmd.Type)
	if !cmd.Type.Known() {
		label = "unknown"
	}

	reply, err := d.execute(ctx, cmd)
	d.observe(connID, label, start, err)
	if err != nil {
		return errorReply(err)
	}
	return reply
}

func (d *Dispatcher) execute(ctx context.Context, cmd core.Command) (reply Reply, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	switch cmd.Type {
	case core.ExecCommand:
		if err := d.instance.Exec(ctx, cmd.SQL); err != nil {
			return Reply{}, err
		}
		return emptyReply, nil

	case core.ArrowCommand:
		data, err := d.instance.Retrieve(ctx, cmd.SQL, core.ArrowFormat, cmd.Persist)
		if err != nil {
			return Reply{}, err
		}
		return binaryReply(data), nil

	case core.JSONCommand:
		data, err := d.instance.Retrieve(ctx, cmd.SQL, core.JSONFormat, cmd.Persist)
		if err != nil {
			return Reply{}, err
		}
		return textReply(data), nil

	case core.CreateBundleCommand:
		if _, err := d.bundler.Create(ctx, cmd.BundleName(), cmd.Queries); err != nil {
			return Reply{}, err
		}
		return emptyReply, nil

	case core.LoadBundleCommand:
		if _, err := d.bundler.Load(ctx, cmd.BundleName()); err != nil {
			return Reply{}, err
		}
		return emptyReply, nil

	default:
		return Reply{}, core.New(core.UnknownCommandError, fmt.Sprintf("unknown command type %q", cmd.Type))
	}
}

// observe logs the command and records its metrics.
func (d *Dispatcher) observe(connID, label string, start time.Time, err error) {
	elapsed := time.Since(start)

	metrics.GetOrCreateCounter(fmt.Sprintf(`duckserve_commands_total{type=%q}`, label)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`duckserve_command_duration_seconds{type=%q}`, label)).Update(elapsed.Seconds())

	log := d.log.WithFields(logrus.Fields{
		"conn":    connID,
		"type":    label,
		"elapsed": elapsed.Milliseconds(),
	})
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`duckserve_command_errors_total{type=%q,kind=%q}`, label, errorKind(err))).Inc()
		log = log.WithError(err)
	}

	switch {
	case d.opts.SlowQuery > 0 && elapsed > d.opts.SlowQuery:
		log.Warn("Slow command")
	case err != nil:
		log.Info("Command failed")
	default:
		log.Info("Command completed")
	}
}

func errorKind(err error) string {
	if kind := core.KindOf(err); kind != "" {
		return string(kind)
	}
	return "internal"
}
