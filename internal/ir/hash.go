package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConfig    = "sequence/config/v1"
	DomainExecution = "sequence/execution/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash computes the content-addressed identity of a model
// configuration. Two configurations that compile to the same descriptor
// hash identically regardless of source formatting.
func ConfigHash(cfg *ModelConfig) (string, error) {
	canonical, err := MarshalCanonical(cfg.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// ExecutionID computes the identity of one Execute call of one instance.
func ExecutionID(instanceID string, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"instance_id": instanceID,
		"seq":         seq,
	})
	if err != nil {
		return "", fmt.Errorf("ExecutionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExecution, canonical), nil
}

// CanonicalMap converts the configuration to a canonical JSON value.
func (c *ModelConfig) CanonicalMap() map[string]any {
	tensors := func(ts []TensorConfig) []any {
		out := make([]any, len(ts))
		for i, t := range ts {
			out[i] = map[string]any{
				"name":      t.Name,
				"data_type": string(t.DataType),
				"dims":      append([]int64{}, t.Dims...),
			}
		}
		return out
	}

	m := map[string]any{
		"name":           c.Name,
		"max_batch_size": c.MaxBatchSize,
		"input":          tensors(c.Inputs),
		"output":         tensors(c.Outputs),
	}
	if c.SequenceBatching != nil {
		controls := make([]any, len(c.SequenceBatching.ControlInputs))
		for i, ci := range c.SequenceBatching.ControlInputs {
			controls[i] = map[string]any{"name": ci.Name, "kind": ci.Kind}
		}
		m["sequence_batching"] = map[string]any{
			"control_input":                  controls,
			"max_sequence_idle_microseconds": c.SequenceBatching.MaxSequenceIdleMicroseconds,
		}
	}
	if len(c.Parameters) > 0 {
		params := make(map[string]any, len(c.Parameters))
		for k, v := range c.Parameters {
			params[k] = v
		}
		m["parameters"] = params
	}
	return m
}
