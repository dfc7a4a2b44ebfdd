package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled while loading definitions.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects every error before returning.
	LoadModeCollectAll
)

// Definition is one named grid loaded from CUE.
type Definition struct {
	Name    string
	Columns *Set
}

// LoadError is a definition-loading failure with an error code and, when
// CUE can supply one, a source position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, unified across the CLI surface.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeColumnKey     = "E101" // Missing column key
	ErrCodeNoColumns     = "E102" // Grid with no columns
	ErrCodeColumnInvalid = "E103" // Column failed validation
	ErrCodeBadDebounce   = "E104" // Debounce not integer milliseconds
	ErrCodeUnknownGrid   = "E105" // Named grid not defined
)

// LoadDir loads every grid definition from the .cue files in a directory.
//
// Definitions live under the top-level "grid" struct, one field per grid:
//
//	grid: people: {
//		columns: [
//			{key: "name", title: "Name", sortable: true, filter: "text"},
//			{key: "email", filter: "text", debounce: 300},
//			{key: "role", filter: "select", options: ["admin", "viewer"]},
//		]
//	}
//
// Debounce is integer milliseconds. In LoadModeFailFast the first error
// returns immediately; in LoadModeCollectAll every definition is attempted
// and all errors come back together.
func LoadDir(dir string, mode LoadMode) ([]Definition, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definitions directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	var defs []Definition
	gridsVal := value.LookupPath(cue.ParsePath("grid"))
	if gridsVal.Exists() {
		iter, iterErr := gridsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating grids: %v", iterErr)})
			if mode == LoadModeFailFast {
				return defs, errs
			}
		} else {
			for iter.Next() {
				name := iter.Label()
				set, compileErr := compileGrid(iter.Value(), name)
				if compileErr != nil {
					errs = append(errs, compileErr)
					if mode == LoadModeFailFast {
						return defs, errs
					}
					continue
				}
				defs = append(defs, Definition{Name: name, Columns: set})
			}
		}
	}

	if len(defs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no grid definitions found"})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, errs
}

// LoadGrid loads one named grid, failing fast. An unknown name gets a
// did-you-mean suggestion when another definition is within editing
// distance.
func LoadGrid(dir, name string) (*Set, error) {
	defs, errs := LoadDir(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		if d.Name == name {
			return d.Columns, nil
		}
		names = append(names, d.Name)
	}
	if s := suggestName(name, names); s != "" {
		return nil, &LoadError{Code: ErrCodeUnknownGrid, Message: fmt.Sprintf("grid %q not defined (did you mean %q?)", name, s)}
	}
	return nil, &LoadError{Code: ErrCodeUnknownGrid, Message: fmt.Sprintf("grid %q not defined", name)}
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

// compileGrid parses one grid struct into a validated column set.
func compileGrid(v cue.Value, name string) (*Set, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoColumns, Message: fmt.Sprintf("grid %s: columns are required", name), Pos: v.Pos()}
	}
	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []Column
	for idx := 0; iter.Next(); idx++ {
		col, err := compileColumn(iter.Value(), name, idx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, &LoadError{Code: ErrCodeNoColumns, Message: fmt.Sprintf("grid %s: at least one column is required", name), Pos: v.Pos()}
	}

	set, err := NewSet(cols...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeColumnInvalid, Message: fmt.Sprintf("grid %s: %v", name, err), Pos: v.Pos()}
	}
	return set, nil
}

// compileColumn parses a single column struct.
func compileColumn(v cue.Value, grid string, idx int) (Column, error) {
	col := Column{Filter: FilterNone}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return col, &LoadError{
			Code:    ErrCodeColumnKey,
			Message: fmt.Sprintf("grid %s: columns[%d]: key is required", grid, idx),
			Pos:     v.Pos(),
		}
	}
	key, err := keyVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	col.Key = key

	if tv := v.LookupPath(cue.ParsePath("title")); tv.Exists() {
		title, err := tv.String()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Title = title
	}
	if sv := v.LookupPath(cue.ParsePath("sortable")); sv.Exists() {
		sortable, err := sv.Bool()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Sortable = sortable
	}
	if fv := v.LookupPath(cue.ParsePath("filter")); fv.Exists() {
		kind, err := fv.String()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Filter = FilterKind(kind)
	}
	if ov := v.LookupPath(cue.ParsePath("options")); ov.Exists() {
		optIter, err := ov.List()
		if err != nil {
			return col, formatCUEError(err)
		}
		for optIter.Next() {
			opt, err := optIter.Value().String()
			if err != nil {
				return col, formatCUEError(err)
			}
			col.Options = append(col.Options, opt)
		}
	}
	if dv := v.LookupPath(cue.ParsePath("debounce")); dv.Exists() {
		ms, err := dv.Int64()
		if err != nil {
			return col, &LoadError{
				Code:    ErrCodeBadDebounce,
				Message: fmt.Sprintf("grid %s: column %s: debounce must be integer milliseconds", grid, key),
				Pos:     dv.Pos(),
			}
		}
		if ms < 0 {
			return col, &LoadError{
				Code:    ErrCodeBadDebounce,
				Message: fmt.Sprintf("grid %s: column %s: negative debounce %d", grid, key, ms),
				Pos:     dv.Pos(),
			}
		}
		col.Debounce = time.Duration(ms) * time.Millisecond
	}

	return col, nil
}

// suggestName is Suggest over an ad hoc name list.
func suggestName(name string, known []string) string {
	cols := make([]Column, len(known))
	for i, k := range known {
		cols[i] = Column{Key: k}
	}
	s := Set{cols: cols}
	return s.Suggest(name)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Code: ErrCodeGeneric, Message: first.Error(), Pos: positions[0]}
	}
	return err
}
