package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses the Lua config at path on top of Defaults().
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := p.ParseString(ctx, string(data))
	if parseErr, ok := err.(*ParseError); ok {
		parseErr.File = path
	}
	return cfg, err
}

// ParseString parses a Lua config from a string on top of Defaults().
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	// Lua code cannot observe ctx; stop it when ctx is done
	L.SetContext(ctx)

	cfg := Defaults()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
		cfg.Host = info
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua error",
			Detail:  err.Error(),
		}
	}

	if err := extractConfig(L, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	File    string // Config file, empty for in-memory sources
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global workspace table into cfg.
// A missing table leaves the defaults in place.
func extractConfig(L *lua.LState, cfg *Config) error {
	val := L.GetGlobal(luaGlobalWorkspace)
	if val.Type() == lua.LTNil {
		return nil
	}
	table, ok := val.(*lua.LTable)
	if !ok {
		return &ParseError{
			Message: "invalid 'workspace' value",
			Detail:  fmt.Sprintf("expected table, got %s", val.Type()),
		}
	}

	r := &tableReader{prefix: luaGlobalWorkspace}
	r.str(table, luaFieldDir, &cfg.Dir)
	r.integer(table, luaFieldJobs, &cfg.Jobs)

	if node := r.table(table, luaFieldNode); node != nil {
		nr := r.sub(luaFieldNode)
		nr.str(node, luaFieldVersion, &cfg.Node.Version)
		nr.str(node, luaFieldMirror, &cfg.Node.Mirror)
		nr.str(node, luaFieldOS, &cfg.Node.OS)
		nr.str(node, luaFieldArch, &cfg.Node.Arch)
		nr.boolean(node, luaFieldVerify, &cfg.Node.Verify)
		nr.str(node, luaFieldKeyring, &cfg.Node.Keyring)
		r.adopt(nr)
	}

	if npm := r.table(table, luaFieldNpm); npm != nil {
		nr := r.sub(luaFieldNpm)
		nr.str(npm, luaFieldVersion, &cfg.Npm.Version)
		nr.str(npm, luaFieldRegistry, &cfg.Npm.Registry)
		r.adopt(nr)
	}

	if cli := r.table(table, luaFieldCLI); cli != nil {
		cr := r.sub(luaFieldCLI)
		cr.str(cli, luaFieldOutput, &cfg.CLI.Output)
		cr.str(cli, luaFieldPackage, &cfg.CLI.Package)
		r.adopt(cr)
	}

	if tasks := r.table(table, luaFieldTasks); tasks != nil {
		cfg.Tasks = r.tasks(tasks)
	}

	if r.err != nil {
		return r.err
	}

	cfg.Node.Version = strings.TrimPrefix(cfg.Node.Version, "v")
	cfg.Npm.Version = strings.TrimPrefix(cfg.Npm.Version, "v")

	if err := cfg.Validate(); err != nil {
		return &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}
	return nil
}

// tableReader copies typed fields out of Lua tables, keeping the first type error.
type tableReader struct {
	prefix string
	err    error
}

func (r *tableReader) sub(field string) *tableReader {
	return &tableReader{prefix: r.prefix + "." + field}
}

func (r *tableReader) adopt(other *tableReader) {
	if r.err == nil {
		r.err = other.err
	}
}

func (r *tableReader) fail(field, want string, got lua.LValue) {
	if r.err != nil {
		return
	}
	r.err = &ParseError{
		Message: fmt.Sprintf("invalid type for %s.%s", r.prefix, field),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// get returns the field, or nil when absent
func (r *tableReader) get(t *lua.LTable, field string) lua.LValue {
	v := t.RawGetString(field)
	if v.Type() == lua.LTNil {
		return nil
	}
	return v
}

func (r *tableReader) str(t *lua.LTable, field string, dst *string) {
	v := r.get(t, field)
	if v == nil {
		return
	}
	s, ok := v.(lua.LString)
	if !ok {
		r.fail(field, "string", v)
		return
	}
	*dst = strings.TrimSpace(string(s))
}

func (r *tableReader) boolean(t *lua.LTable, field string, dst *bool) {
	v := r.get(t, field)
	if v == nil {
		return
	}
	b, ok := v.(lua.LBool)
	if !ok {
		r.fail(field, "boolean", v)
		return
	}
	*dst = bool(b)
}

func (r *tableReader) integer(t *lua.LTable, field string, dst *int) {
	v := r.get(t, field)
	if v == nil {
		return
	}
	n, ok := v.(lua.LNumber)
	if !ok || float64(n) != float64(int(n)) {
		r.fail(field, "integer", v)
		return
	}
	*dst = int(n)
}

func (r *tableReader) table(t *lua.LTable, field string) *lua.LTable {
	v := r.get(t, field)
	if v == nil {
		return nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		r.fail(field, "table", v)
		return nil
	}
	return tbl
}

// strings reads an array of strings. Nil holes left by platform.when are skipped.
func (r *tableReader) strings(t *lua.LTable, field string) []string {
	arr := r.table(t, field)
	if arr == nil {
		return nil
	}

	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		v := arr.RawGetInt(i)
		switch v := v.(type) {
		case *lua.LNilType:
			continue
		case lua.LString:
			out = append(out, string(v))
		case lua.LNumber:
			out = append(out, v.String())
		default:
			r.fail(fmt.Sprintf("%s[%d]", field, i), "string", v)
			return nil
		}
	}
	return out
}

func (r *tableReader) tasks(arr *lua.LTable) []TaskSpec {
	var tasks []TaskSpec
	for i := 1; i <= arr.MaxN(); i++ {
		v := arr.RawGetInt(i)
		if v.Type() == lua.LTNil {
			continue
		}
		t, ok := v.(*lua.LTable)
		if !ok {
			r.fail(fmt.Sprintf("%s[%d]", luaFieldTasks, i), "table", v)
			return nil
		}

		tr := r.sub(fmt.Sprintf("%s[%d]", luaFieldTasks, i))
		var spec TaskSpec
		tr.str(t, luaFieldName, &spec.Name)
		tr.str(t, luaFieldDesc, &spec.Description)
		tr.str(t, luaFieldDir, &spec.Dir)
		spec.Deps = tr.strings(t, luaFieldDeps)
		spec.Run = tr.strings(t, luaFieldRun)
		r.adopt(tr)
		if r.err != nil {
			return nil
		}
		tasks = append(tasks, spec)
	}
	return tasks
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		message := parseErr.Message
		if parseErr.File != "" {
			message = parseErr.File + ": " + message
		}
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", message, parseErr.Detail)
		}
		// Extract the most relevant part of the error
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", message, detail)
	}
	return err.Error()
}
