package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadResult contains the models loaded from a schema directory.
type LoadResult struct {
	Registry  *Registry
	Defs      []*ModelDef
	FileCount int // Number of CUE files found
}

// LoadDir loads every .cue file in dir as one CUE instance and builds a
// registry from its top-level model struct.
func LoadDir(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	result, err := Build(value)
	if err != nil {
		return nil, err
	}
	result.FileCount = len(cueFiles)
	return result, nil
}

// LoadString compiles CUE source held in memory. It is mostly useful in tests
// and for schemas embedded in binaries.
func LoadString(src string) (*LoadResult, error) {
	ctx := cuecontext.New()
	return Build(ctx.CompileString(src))
}

// Build compiles every field of the value's model struct and builds the
// registry. Models are compiled in label order.
func Build(value cue.Value) (*LoadResult, error) {
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := value.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "model", Message: "no models defined", Pos: value.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*ModelDef
	for iter.Next() {
		def, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "model", Message: "no models defined", Pos: modelsVal.Pos()}
	}

	reg, err := NewRegistry(defs...)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Registry: reg, Defs: defs}, nil
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
