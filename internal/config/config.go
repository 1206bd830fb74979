// Package config loads store configuration written in CUE.
//
// A config file is unified with the embedded #Config schema, so defaults are
// filled in and constraint violations are reported with CUE source positions:
//
//	initial: count: 3
//	middleware: ["logger", "journal"]
//	journal: "reflux.db"
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reflux/internal/counter"
)

//go:embed schema.cue
var schemaCUE string

// Middleware names accepted in Config.Middleware.
const (
	MiddlewareLogger  = "logger"
	MiddlewareMetrics = "metrics"
	MiddlewareJournal = "journal"
)

// Config is the decoded store configuration.
type Config struct {
	Initial          counter.State `json:"initial"`
	Middleware       []string      `json:"middleware"`
	MaxDepth         int           `json:"max_depth"`
	Journal          string        `json:"journal"`
	MetricsNamespace string        `json:"metrics_namespace"`
}

// Has reports whether the named middleware is enabled.
func (c *Config) Has(name string) bool {
	for _, m := range c.Middleware {
		if m == name {
			return true
		}
	}
	return false
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := decode(cuecontext.New().CompileString("{}"))
	if err != nil {
		// The embedded schema is fixed at build time.
		panic(fmt.Sprintf("config: default does not satisfy schema: %v", err))
	}
	return cfg
}

// Load reads a config from a .cue file or from a directory of CUE files
// sharing one package.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config not found: %s", path)}
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		value, err = loadDir(ctx, path)
	} else {
		value, err = loadFile(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	return decode(value)
}

// Parse decodes a config from CUE source. filename is used in positions.
func Parse(filename string, src []byte) (*Config, error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fromCUE(ErrCodeLoadFailed, err)
	}
	return decode(value)
}

func loadFile(ctx *cue.Context, path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, &ConfigError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("read %s: %v", path, err)}
	}
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cue.Value{}, fromCUE(ErrCodeLoadFailed, err)
	}
	return value, nil
}

func loadDir(ctx *cue.Context, dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &ConfigError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fromCUE(ErrCodeLoadFailed, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, fromCUE(ErrCodeLoadFailed, err)
	}
	return value, nil
}

// decode unifies value with #Config and decodes the concrete result.
func decode(value cue.Value) (*Config, error) {
	ctx := value.Context()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fromCUE(ErrCodeInvalid, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fromCUE(ErrCodeInvalid, err)
	}
	if cfg.Middleware == nil {
		cfg.Middleware = []string{}
	}
	return &cfg, nil
}

// fromCUE converts the first CUE error into a ConfigError carrying its
// source position.
func fromCUE(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	var pos token.Pos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &ConfigError{
		Code:    code,
		Message: first.Error(),
		Pos:     pos,
		Count:   len(errs),
	}
}
