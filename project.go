package scriptrun

import "path/filepath"

// Project is the project model handed to the runner. It supplies the script
// source roots and is what scripts see under the project property.
type Project struct {
	Name    string `json:"name"`
	BaseDir string `json:"baseDir"`
	// ScriptSourceRoots are scanned in order. Relative entries resolve
	// against BaseDir.
	ScriptSourceRoots []string          `json:"scriptSourceRoots"`
	Properties        map[string]string `json:"properties"`
}

// SourceRoots returns ScriptSourceRoots with relative entries joined to
// BaseDir. A nil Project has no roots.
func (p *Project) SourceRoots() []string {
	if p == nil {
		return nil
	}
	roots := make([]string, 0, len(p.ScriptSourceRoots))
	for _, r := range p.ScriptSourceRoots {
		if !filepath.IsAbs(r) && p.BaseDir != "" {
			r = filepath.Join(p.BaseDir, r)
		}
		roots = append(roots, r)
	}
	return roots
}

// Property returns a project property.
func (p *Project) Property(name string) string {
	if p == nil {
		return ""
	}
	return p.Properties[name]
}
