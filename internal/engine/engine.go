package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// DelayParameter is the model parameter holding the per-batch delay in
// milliseconds.
const DelayParameter = "execute_delay_ms"

// Payload is one slot of a batch: the next timestep of one sequence.
//
// The host fills every field except Err. Execute sets Err when this
// payload fails; other payloads in the same batch are unaffected. A
// payload that arrives with Err already set is still stepped, but its
// output is not written.
type Payload struct {
	// BatchSize must be 1.
	BatchSize int

	// InputShapes holds the declared shape of each input by name. The
	// element count of INPUT is InputShapes["INPUT"][0], or 0 when absent.
	InputShapes map[string][]int64

	// RequiredOutputs lists the outputs the caller wants. Only the first
	// entry is written.
	RequiredOutputs []string

	Input  InputSource
	Output OutputSink

	Err error
}

// OutputSink hands out buffers for payload outputs.
//
// A nil buffer with a nil error means the caller does not want this
// output and nothing is written.
type OutputSink interface {
	OutputBuffer(name string, shape []int64, elementSize int) ([]byte, error)
}

// SlotResult is the outcome of one payload of a batch.
type SlotResult struct {
	Slot int
	Err  error

	// Step holds the decoded inputs; nil if the slot failed before the
	// step rule ran.
	Step *ir.StepInput

	// Emitted is true when READY was set and the accumulator produced a
	// value. Written is true when the value was copied to the sink.
	Emitted bool
	Written bool
	Output  int32

	// Accumulator is the slot value after this batch.
	Accumulator int32
}

// Recorder receives one record per executed batch.
// Implemented by store.Store.
type Recorder interface {
	RecordExecution(ctx context.Context, rec ir.ExecutionRecord) error
}

// Engine is one instance of the sequence accumulator.
type Engine struct {
	name       string
	cfg        *ir.ModelConfig
	device     int
	configHash string
	delay      time.Duration

	acc     *Accumulators // nil until Init succeeds
	initial []int32

	clock      SeqClock
	instanceID string
	logger     *slog.Logger
	recorder   Recorder
	sleep      func(time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder journals every executed batch.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithSleeper replaces time.Sleep for the execution delay.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithClock sets the logical clock, e.g. ResumeClock(lastSeq) to continue
// a journaled instance.
func WithClock(c SeqClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithInstanceID fixes the instance ID instead of generating a UUIDv7.
func WithInstanceID(id string) Option {
	return func(e *Engine) {
		e.instanceID = id
	}
}

// WithIDGenerator generates the instance ID from gen.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		e.instanceID = gen.Generate()
	}
}

// WithInitialAccumulators restores slot values from a checkpoint when
// Init allocates the store. Missing trailing slots start at zero.
func WithInitialAccumulators(values []int32) Option {
	return func(e *Engine) {
		e.initial = append([]int32{}, values...)
	}
}

// New creates an uninitialized instance. Init must succeed before
// Execute is called.
//
// An execute_delay_ms parameter that does not parse as an integer is
// logged and ignored.
func New(name string, cfg *ir.ModelConfig, device int, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil model configuration")
	}

	hash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		name:       name,
		cfg:        cfg,
		device:     device,
		configHash: hash,
		clock:      NewClock(),
		logger:     slog.Default(),
		sleep:      time.Sleep,
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.instanceID == "" {
		e.instanceID = UUIDv7Generator{}.Generate()
	}

	if raw, ok := cfg.Parameter(DelayParameter); ok {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			e.logger.Warn("ignoring execute delay", "model", name, "value", raw, "error", err)
		} else if ms > 0 {
			e.delay = time.Duration(ms) * time.Millisecond
		}
	}

	return e, nil
}

// Create is New followed by Init. The instance is returned even when Init
// fails so the host can report it; it must not be executed.
func Create(name string, cfg *ir.ModelConfig, device int, opts ...Option) (*Engine, error) {
	e, err := New(name, cfg, device, opts...)
	if err != nil {
		return nil, err
	}
	return e, e.Init()
}

// Name returns the instance name.
func (e *Engine) Name() string { return e.name }

// InstanceID returns the instance identifier used in journal records.
func (e *Engine) InstanceID() string { return e.instanceID }

// Config returns the model configuration.
func (e *Engine) Config() *ir.ModelConfig { return e.cfg }

// ConfigHash returns the content hash of the model configuration.
func (e *Engine) ConfigHash() string { return e.configHash }

// Delay returns the configured per-batch delay.
func (e *Engine) Delay() time.Duration { return e.delay }

// Seq returns the seq of the last executed batch.
func (e *Engine) Seq() int64 { return e.clock.Current() }

// Accumulators returns a copy of all slot values, or nil before Init.
func (e *Engine) Accumulators() []int32 {
	if e.acc == nil {
		return nil
	}
	return e.acc.Snapshot()
}

// Execute runs one batch. Payload i drives accumulator slot i.
//
// Execute fails as a whole only with NOT_INITIALIZED or BATCH_TOO_LARGE,
// before any slot is touched. Every other failure is reported on the
// payload (Payload.Err and SlotResult.Err) and the batch continues.
//
// The configured delay is an unconditional sleep; ctx is only passed to
// the Recorder.
func (e *Engine) Execute(ctx context.Context, payloads []Payload) ([]SlotResult, error) {
	if e.acc == nil {
		return nil, newError(ErrCodeNotInitialized, "instance %q has not been initialized", e.name)
	}
	if len(payloads) > e.acc.Len() {
		return nil, newError(ErrCodeBatchTooLarge,
			"unable to execute batch of %d payloads, max batch size is %d", len(payloads), e.acc.Len())
	}

	seq := e.clock.Next()
	e.logger.Debug("executing batch", "instance", e.instanceID, "seq", seq, "payloads", len(payloads))

	if e.delay > 0 {
		e.sleep(e.delay)
	}

	results := make([]SlotResult, len(payloads))
	for i := range payloads {
		p := &payloads[i]
		res := e.executeSlot(i, p)
		res.Accumulator = e.acc.Get(i)
		if res.Err != nil {
			p.Err = res.Err
			e.logger.Warn("payload failed", "seq", seq, "slot", i, "code", CodeOf(res.Err), "error", res.Err)
		}
		results[i] = res
	}

	e.record(ctx, seq, results)
	return results, nil
}

func (e *Engine) executeSlot(slot int, p *Payload) SlotResult {
	res := SlotResult{Slot: slot}

	if p.BatchSize != 1 {
		res.Err = slotError(slot, ErrCodeMultiTimestep, "", nil,
			"unable to execute more than one timestep at a time (batch size %d)", p.BatchSize)
		return res
	}

	var elements int64
	if dims := p.InputShapes[InputName]; len(dims) > 0 {
		elements = dims[0]
	}
	if elements < 0 || elements > maxInputElements {
		res.Err = slotError(slot, ErrCodeSizeMismatch, InputName, nil,
			"unexpected size for input tensor (declared %d elements)", elements)
		return res
	}

	start, err := e.assemble(slot, p.Input, ControlStart, int32Size)
	if err != nil {
		res.Err = err
		return res
	}
	ready, err := e.assemble(slot, p.Input, ControlReady, int32Size)
	if err != nil {
		res.Err = err
		return res
	}
	input, err := e.assemble(slot, p.Input, InputName, uint64(elements)*int32Size)
	if err != nil {
		res.Err = err
		return res
	}

	step := &ir.StepInput{
		Start: decodeScalar(start),
		Ready: decodeScalar(ready),
		Input: decodeInt32s(input),
	}
	res.Step = step

	value, emit := e.acc.Step(slot, step.Start, step.Ready, step.Input)
	if !emit {
		return res
	}
	res.Emitted = true
	res.Output = value

	if p.Err != nil || len(p.RequiredOutputs) == 0 {
		return res
	}

	// Non-batching models drop the leading batch dimension.
	shape := []int64{elements}
	if e.cfg.Batching() {
		shape = []int64{1, elements}
	}

	name := p.RequiredOutputs[0]
	if p.Output == nil {
		res.Err = slotError(slot, ErrCodeOutputBuffer, name, nil, "no output sink")
		return res
	}
	buf, err := p.Output.OutputBuffer(name, shape, int32Size)
	if err != nil {
		res.Err = slotError(slot, ErrCodeOutputBuffer, name, err, "unable to get buffer for output tensor values")
		return res
	}
	if buf == nil {
		return res
	}
	if len(buf) < int32Size {
		res.Err = slotError(slot, ErrCodeOutputBuffer, name, nil,
			"output buffer holds %d bytes, need %d", len(buf), int32Size)
		return res
	}
	binary.LittleEndian.PutUint32(buf, uint32(value))
	res.Written = true
	return res
}

// assemble wraps Assemble and stamps the slot on failures.
func (e *Engine) assemble(slot int, src InputSource, name string, expected uint64) ([]byte, error) {
	buf, err := Assemble(src, name, expected, e.logger)
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			ee.Slot = slot
		}
		return nil, err
	}
	return buf, nil
}

// record journals the batch. Journal failures are logged and never
// change the batch outcome.
func (e *Engine) record(ctx context.Context, seq int64, results []SlotResult) {
	if e.recorder == nil {
		return
	}

	id, err := ir.ExecutionID(e.instanceID, seq)
	if err != nil {
		e.logger.Error("failed to journal batch", "seq", seq, "error", err)
		return
	}

	rec := ir.ExecutionRecord{
		ID:            id,
		InstanceID:    e.instanceID,
		ModelName:     e.name,
		Seq:           seq,
		PayloadCount:  len(results),
		ConfigHash:    e.configHash,
		EngineVersion: ir.EngineVersion,
		Slots:         make([]ir.SlotRecord, len(results)),
		Accumulators:  e.acc.Snapshot(),
	}
	for i, r := range results {
		rec.Slots[i] = ir.SlotRecord{
			Slot:        r.Slot,
			ErrorCode:   string(CodeOf(r.Err)),
			Step:        r.Step,
			Emitted:     r.Emitted,
			Written:     r.Written,
			Output:      r.Output,
			Accumulator: r.Accumulator,
		}
	}

	if err := e.recorder.RecordExecution(ctx, rec); err != nil {
		e.logger.Error("failed to journal batch", "instance", e.instanceID, "seq", seq, "error", err)
	}
}
