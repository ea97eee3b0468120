package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// LoadResult contains a compiled model configuration and its source.
type LoadResult struct {
	Path      string
	FileCount int       // Number of CUE files found
	CUEValue  cue.Value // The raw CUE value for additional processing
	Config    *ir.ModelConfig
}

// LoadModel loads and compiles a model configuration from a CUE file or a
// directory holding one CUE package. When the configuration omits name,
// the directory (or file) base name is used, mirroring a model repository
// layout where each model lives in its own directory.
func LoadModel(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("model configuration not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing model configuration: %w", err)
	}

	ctx := cuecontext.New()
	result := &LoadResult{Path: path}

	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, fmt.Errorf("error scanning directory: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no CUE files found in %s", path)
		}
		result.FileCount = len(files)

		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances loaded from %s", path)
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
		}
		result.CUEValue = ctx.BuildInstance(inst)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model configuration: %w", err)
		}
		result.FileCount = 1
		result.CUEValue = ctx.CompileBytes(data, cue.Filename(path))
	}

	if err := result.CUEValue.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	cfg, err := CompileModel(result.CUEValue)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		base := filepath.Base(path)
		if !info.IsDir() {
			base = base[:len(base)-len(filepath.Ext(base))]
		}
		cfg.Name = base
	}
	result.Config = cfg

	return result, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
