// Package config loads the scriptrun build descriptor: an HCL file holding
// one project block and any number of execution blocks.
//
//	project "demo" {
//	  base_dir            = "."
//	  script_source_roots = ["src/main/scripts"]
//	  properties = {
//	    version = "1.0.0"
//	    home    = env.HOME
//	  }
//	}
//
//	execution "default" {
//	  includes                 = ["**/*.js"]
//	  language                 = "javascript"
//	  script                   = "executed = true"
//	  pass_project_as_property = true
//	}
//
// Expressions may reference env (the process environment) and config_dir
// (the directory holding the file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/jward/scriptrun"
)

// DefaultFile is the descriptor name looked up when none is given.
const DefaultFile = "scriptrun.hcl"

// DefaultScriptSourceRoot is used when the project lists no roots.
const DefaultScriptSourceRoot = "src/main/scripts"

// Descriptor is a loaded build descriptor.
type Descriptor struct {
	Path       string
	Project    *scriptrun.Project
	Executions []Execution
}

// Execution is one execution block, in file order.
type Execution struct {
	ID     string
	Config scriptrun.Config
}

// Execution returns the execution with the given id.
func (d *Descriptor) Execution(id string) (Execution, bool) {
	for _, e := range d.Executions {
		if e.ID == id {
			return e, true
		}
	}
	return Execution{}, false
}

// fileRoot decodes all top-level blocks of a descriptor.
type fileRoot struct {
	Project    *projectBlock     `hcl:"project,block"`
	Executions []*executionBlock `hcl:"execution,block"`
}

type projectBlock struct {
	Name              string            `hcl:"name,label"`
	BaseDir           string            `hcl:"base_dir,optional"`
	ScriptSourceRoots []string          `hcl:"script_source_roots,optional"`
	Properties        map[string]string `hcl:"properties,optional"`
}

type executionBlock struct {
	ID                    string   `hcl:"id,label"`
	Includes              []string `hcl:"includes,optional"`
	Excludes              []string `hcl:"excludes,optional"`
	Language              string   `hcl:"language,optional"`
	Extension             string   `hcl:"extension,optional"`
	MimeType              string   `hcl:"mime_type,optional"`
	Script                string   `hcl:"script,optional"`
	PassProjectAsProperty bool     `hcl:"pass_project_as_property,optional"`
	NameOfProjectProperty string   `hcl:"name_of_project_property,optional"`
}

// Load reads and decodes the descriptor at path.
func Load(path string) (*Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes a descriptor from src. filename is used in diagnostics and
// its directory anchors relative paths.
func Parse(src []byte, filename string) (*Descriptor, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", filename, diags)
	}

	dir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return nil, fmt.Errorf("config: resolve directory of %s: %w", filename, err)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(dir), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %w", filename, diags)
	}

	d := &Descriptor{Path: filename, Project: buildProject(root.Project, dir)}

	seen := make(map[string]bool)
	for _, eb := range root.Executions {
		if seen[eb.ID] {
			return nil, fmt.Errorf("config: %s: duplicate execution %q", filename, eb.ID)
		}
		seen[eb.ID] = true

		exec := Execution{ID: eb.ID, Config: eb.toConfig()}
		if err := exec.Config.Validate(); err != nil {
			return nil, fmt.Errorf("config: %s: execution %q: %w", filename, eb.ID, err)
		}
		d.Executions = append(d.Executions, exec)
	}
	return d, nil
}

func buildProject(pb *projectBlock, dir string) *scriptrun.Project {
	p := &scriptrun.Project{
		Name:              filepath.Base(dir),
		BaseDir:           dir,
		ScriptSourceRoots: []string{DefaultScriptSourceRoot},
		Properties:        map[string]string{},
	}
	if pb == nil {
		return p
	}
	p.Name = pb.Name
	if pb.BaseDir != "" {
		if filepath.IsAbs(pb.BaseDir) {
			p.BaseDir = pb.BaseDir
		} else {
			p.BaseDir = filepath.Join(dir, pb.BaseDir)
		}
	}
	if len(pb.ScriptSourceRoots) > 0 {
		p.ScriptSourceRoots = pb.ScriptSourceRoots
	}
	if pb.Properties != nil {
		p.Properties = pb.Properties
	}
	return p
}

func (eb *executionBlock) toConfig() scriptrun.Config {
	return scriptrun.Config{
		Includes:              eb.Includes,
		Excludes:              eb.Excludes,
		Language:              eb.Language,
		Extension:             eb.Extension,
		MimeType:              eb.MimeType,
		Script:                eb.Script,
		PassProjectAsProperty: eb.PassProjectAsProperty,
		NameOfProjectProperty: eb.NameOfProjectProperty,
	}
}

// evalContext exposes env and config_dir to descriptor expressions.
func evalContext(dir string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":        envValue(os.Environ()),
			"config_dir": cty.StringVal(dir),
		},
	}
}

// envValue converts KEY=VALUE pairs into an object so that a reference to an
// unset variable is reported as a diagnostic rather than read as empty.
func envValue(environ []string) cty.Value {
	attrs := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		attrs[k] = cty.StringVal(v)
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}
