package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/louyanyang/tensorrt-inference-server/internal/compiler"
	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
	"github.com/louyanyang/tensorrt-inference-server/internal/store"
	"github.com/louyanyang/tensorrt-inference-server/internal/testutil"
)

// errSourceFailed is returned by inputs named in PayloadSpec.SourceFail.
var errSourceFailed = errors.New("scripted source failure")

// Options configures a scenario run.
type Options struct {
	// Store journals the run. Nil uses a private in-memory store.
	Store *store.Store

	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger

	// InstanceID overrides the scenario's instance ID.
	InstanceID string
}

// Harness is the test execution engine for one scenario run.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	logger *slog.Logger
	slept  time.Duration
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, Options{})
}

// RunWithOptions executes a scenario with an explicit journal, logger or
// instance ID.
//
// Execution flow:
//  1. Load, compile and validate the model configuration
//  2. Create the engine with a deterministic clock and a no-op sleeper
//  3. Execute each batch and record its trace
//  4. Check expectations, sink contents and journal replay
//
// An error is returned only when the scenario cannot run at all;
// expectation failures are reported on the Result.
func RunWithOptions(scenario *Scenario, opts Options) (*Result, error) {
	ctx := context.Background()

	loaded, err := compiler.LoadModel(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if verrs := compiler.Validate(loaded.Config); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, fmt.Errorf("invalid model %s: %s", loaded.Config.Name, strings.Join(msgs, "; "))
	}

	st := opts.Store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	instanceID := opts.InstanceID
	if instanceID == "" {
		instanceID = scenario.InstanceID
	}
	if instanceID == "" {
		instanceID = "scenario-" + scenario.Name
	}
	last, err := st.GetLastSeq(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check journal: %w", err)
	}
	if last > 0 {
		return nil, fmt.Errorf("instance %s already journaled up to seq %d", instanceID, last)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		logger: logger,
	}

	device := engine.NoGPU
	if scenario.Device != nil {
		device = *scenario.Device
	}

	result := NewResult()
	result.InstanceID = instanceID

	eng, initErr := engine.Create(loaded.Config.Name, loaded.Config, device,
		engine.WithLogger(logger),
		engine.WithRecorder(st),
		engine.WithClock(h.clock),
		engine.WithInstanceID(instanceID),
		engine.WithSleeper(func(d time.Duration) { h.slept += d }),
		engine.WithInitialAccumulators(scenario.InitialAccumulators),
	)
	if eng == nil {
		return nil, fmt.Errorf("failed to create engine: %w", initErr)
	}
	h.engine = eng
	if initErr != nil {
		var ee *engine.Error
		if !errors.As(initErr, &ee) {
			return nil, fmt.Errorf("failed to initialize engine: %w", initErr)
		}
		result.InitError = string(ee.Code)
	}
	if err := assertInitError(scenario.InitError, result.InitError); err != nil {
		result.AddError(err.Error())
	}

	for i, batch := range scenario.Batches {
		trace := h.executeBatch(ctx, i, batch)
		result.AddBatch(trace)
		for _, err := range assertBatch(batch.Expect, trace) {
			result.AddError(err.Error())
		}
		for _, slot := range trace.Slots {
			if msg := slot.sinkMismatch; msg != "" {
				result.AddError(msg)
			}
		}
	}

	result.Accumulators = eng.Accumulators()
	result.Slept = h.slept
	if result.InitError == "" {
		if err := assertAccumulators(scenario.Accumulators, result.Accumulators); err != nil {
			result.AddError(err.Error())
		}
	}

	// A restored instance starts from non-zero values, which replay cannot
	// see.
	if eng.Seq() > 0 && len(scenario.InitialAccumulators) == 0 {
		report, err := st.Replay(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to replay journal: %w", err)
		}
		for _, err := range assertReplay(report) {
			result.AddError(err.Error())
		}
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"instance", instanceID,
		"batches", len(result.Batches),
		"pass", result.Pass,
	)

	return result, nil
}

// executeBatch builds the payloads of one batch, executes them and
// records what each sink received.
func (h *Harness) executeBatch(ctx context.Context, index int, batch Batch) BatchTrace {
	payloads := make([]engine.Payload, len(batch.Payloads))
	sinks := make([]*testutil.RecordingSink, len(batch.Payloads))
	for i, spec := range batch.Payloads {
		payloads[i], sinks[i] = buildPayload(spec)
	}

	trace := BatchTrace{Batch: index, Slots: []SlotTrace{}}

	results, err := h.engine.Execute(ctx, payloads)
	if err != nil {
		trace.Error = string(engine.CodeOf(err))
		h.logger.Info("batch rejected", "batch", index, "code", trace.Error)
		return trace
	}
	trace.Seq = h.engine.Seq()

	for i, r := range results {
		slot := SlotTrace{
			Slot:        r.Slot,
			Error:       string(engine.CodeOf(r.Err)),
			Step:        r.Step,
			Emitted:     r.Emitted,
			Written:     r.Written,
			Output:      r.Output,
			Accumulator: r.Accumulator,
		}
		if reqs := sinks[i].Requests(); len(reqs) > 0 {
			slot.OutputShape = reqs[0].Shape
		}
		if r.Written {
			name := payloads[i].RequiredOutputs[0]
			if got, ok := sinks[i].Int32(name); !ok || got != r.Output {
				slot.sinkMismatch = (&AssertionError{
					Type:     AssertSinkValue,
					Batch:    index,
					Slot:     r.Slot,
					Expected: fmt.Sprintf("%s holding %d", name, r.Output),
					Actual:   fmt.Sprintf("%d (found=%t)", got, ok),
				}).Error()
			}
		}
		trace.Slots = append(trace.Slots, slot)
	}

	return trace
}

// buildPayload turns a payload description into an engine payload backed
// by an in-memory source and sink.
func buildPayload(spec PayloadSpec) (engine.Payload, *testutil.RecordingSink) {
	omitted := make(map[string]bool, len(spec.Omit))
	for _, name := range spec.Omit {
		omitted[name] = true
	}

	src := testutil.NewChunkSource()
	if !omitted[engine.ControlStart] {
		src.AddInt32s(engine.ControlStart, []int32{spec.Start})
	}
	if !omitted[engine.ControlReady] {
		src.AddInt32s(engine.ControlReady, []int32{spec.Ready})
	}
	if !omitted[engine.InputName] {
		src.AddInt32s(engine.InputName, spec.Input, spec.Chunks...)
	}
	if spec.SourceFail != "" {
		src.FailOn(spec.SourceFail, errSourceFailed)
	}

	elements := int64(len(spec.Input))
	if spec.DeclaredElements != nil {
		elements = *spec.DeclaredElements
	}
	batchSize := 1
	if spec.BatchSize != nil {
		batchSize = *spec.BatchSize
	}
	outputs := spec.Outputs
	if outputs == nil {
		outputs = []string{engine.OutputName}
	}

	sink := testutil.NewRecordingSink(testutil.SinkMode(spec.Sink))
	if spec.BufferSize > 0 {
		sink.WithBufferSize(spec.BufferSize)
	}

	return engine.Payload{
		BatchSize:       batchSize,
		InputShapes:     map[string][]int64{engine.InputName: {elements}},
		RequiredOutputs: outputs,
		Input:           src,
		Output:          sink,
	}, sink
}
