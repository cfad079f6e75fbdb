package jobgraph

import (
	"fmt"
	"path/filepath"

	"iomanager/internal/rows"
)

// Layout derives the shared-drive and scratch paths for one row.
type Layout struct {
	PlateRoot    string
	PlateVersion string
	Connect      string
	ConnectDir   string
	PlateExt     string
	ShotRoot     string
}

// NewLayout computes the layout of row under drive/project.
func NewLayout(drive, project, plateExt string, row rows.Row) Layout {
	shotDir := filepath.Join(drive, project, "sequences", row.Sequence, row.Shot)
	connect := row.ConnectName()
	l := Layout{
		PlateRoot:    filepath.Join(shotDir, "plate"),
		PlateVersion: fmt.Sprintf("%s_v%03d", row.TypeLabel(), row.Version),
		Connect:      connect,
		PlateExt:     plateExt,
		ShotRoot:     filepath.Join(shotDir, "CMP", "cmp"),
	}
	if row.Kind == rows.KindMovie {
		l.ConnectDir = filepath.Join(filepath.Dir(row.SourcePath), "_io", row.ScanName, connect)
	} else {
		l.ConnectDir = filepath.Join(row.SourcePath, connect)
	}
	return l
}

// Output returns the printf-style destination of output.
func (l Layout) Output(output Output) string {
	versionDir := filepath.Join(l.PlateRoot, l.PlateVersion)
	switch output {
	case OutputPlate:
		return filepath.Join(versionDir, l.Connect, l.Connect+".%04d."+l.PlateExt)
	case OutputJPG, OutputPNG:
		return filepath.Join(versionDir, string(output), l.Connect, l.Connect+".%04d."+string(output))
	case OutputMovie:
		return filepath.Join(versionDir, l.Connect+".mov")
	default:
		return ""
	}
}

// RenderScript is the python script that builds the render .nk.
func (l Layout) RenderScript() string {
	return filepath.Join(l.ConnectDir, ".render_"+l.Connect+".py")
}

// RenderScene is the .nk the render jobs execute.
func (l Layout) RenderScene() string {
	return filepath.Join(l.ConnectDir, ".render_"+l.Connect+".nk")
}

// CopyHeader is the path prefix of the numbered copy scripts.
func (l Layout) CopyHeader() string {
	return filepath.Join(l.ConnectDir, ".copy_to_"+l.Connect)
}

// UploadScript is the repository publish script.
func (l Layout) UploadScript() string {
	return filepath.Join(l.ConnectDir, ".upload_"+l.Connect+".py")
}

// CompScene is the first comp work file of shot.
func (l Layout) CompScene(shot string) string {
	return filepath.Join(l.ShotRoot, "wip", "nuke", "scenes", shot+"_cmp_v000.nk")
}

// CompScript is the python script that builds CompScene. Its presence marks
// the comp as already set up.
func (l Layout) CompScript(shot string) string {
	return filepath.Join(l.ShotRoot, "wip", "nuke", "scenes", shot+"_cmp_v000.py")
}

// CompImages is the comp's render destination for version.
func (l Layout) CompImages(shot, version string) string {
	return filepath.Join(l.ShotRoot, "wip", "nuke", "images", fmt.Sprintf("%s_cmp_%s.%%04d.exr", shot, version))
}

// CompReview is the comp's review movie for version.
func (l Layout) CompReview(shot, version string) string {
	return filepath.Join(l.ShotRoot, "wip", "review", fmt.Sprintf("%s_cmp_%s.mov", shot, version))
}
