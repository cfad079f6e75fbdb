package scripts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"iomanager/internal/frames"
	"iomanager/internal/services"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Kind selects a script template.
type Kind string

const (
	KindRender Kind = "render"
	KindComp   Kind = "comp"
	KindUpload Kind = "upload"
	KindCopy   Kind = "copy"
)

// Write is one Nuke write node in a render script.
type Write struct {
	Node     string
	Path     string
	FileType string
}

// RenderData feeds the render-script template.
type RenderData struct {
	ScriptPath       string
	ConnectName      string
	Source           string
	Range            frames.Range
	OrgRange         frames.Range
	FirstFrameOffset int
	RetimeEndFrame   int
	FPS              float64
	ReformatX        int
	ReformatY        int
	CropPreset       string
	InputColorspace  string
	OutputColorspace string
	MovieCodec       string
	Cube             string
	Writes           []Write
}

// CompData feeds the comp-script template.
type CompData struct {
	Shot        string
	Template    string
	WorkPath    string
	Plate       string
	Range       frames.Range
	ImageOutput string
	MovieOutput string
}

// UploadData feeds the publish-script template.
type UploadData struct {
	SiteURL     string
	ScriptName  string
	ProjectID   int
	ShotID      int
	TaskID      int
	Code        string
	Description string
	Status      string
	Media       string
	Movie       string
	Range       frames.Range
	FPS         float64
}

// Renderer writes scripts from the embedded templates.
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("scripts").Funcs(template.FuncMap{"py": pyString}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse script templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render executes the template for kind with data and writes the result to
// path, creating parent directories. It returns path.
func (r *Renderer) Render(kind Kind, path string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(kind)+".py.tmpl", data); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "scripts", "render "+string(kind), path, err)
	}
	if err := writeScript(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func writeScript(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "scripts", "create script dir", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "scripts", "write script", path, err)
	}
	return nil
}

// pyString renders s as a Python string literal.
func pyString(s string) string {
	return strconv.Quote(s)
}
