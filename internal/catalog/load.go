package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/bmatcuk/doublestar/v4"
)

// Load error fields, used by the CLI to pick an exit code.
const (
	FieldNotFound = "dir"
	FieldNoFiles  = "files"
	FieldLoad     = "load"
	FieldBuild    = "build"
)

// Load compiles the CUE package in dir and returns its catalog.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CompileError{Field: FieldNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Field: FieldNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &CompileError{Field: FieldNoFiles, Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return nil, &CompileError{Field: FieldNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: FieldLoad, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(FieldLoad, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(FieldBuild, err)
	}

	catalogVal := value.LookupPath(cue.ParsePath("catalog"))
	if !catalogVal.Exists() {
		return nil, &CompileError{Field: "catalog", Message: "no top-level catalog field found", Pos: value.Pos()}
	}
	return Compile(catalogVal)
}

// FindCUEFiles returns the .cue files of the package in dir.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.cue", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(dir, m)
	}
	return files, nil
}
