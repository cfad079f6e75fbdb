package jobgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"iomanager/internal/config"
	"iomanager/internal/farm"
	"iomanager/internal/frames"
	"iomanager/internal/logging"
	"iomanager/internal/rows"
	"iomanager/internal/scripts"
	"iomanager/internal/sequence"
	"iomanager/internal/services"
	"iomanager/internal/shotgrid"
)

// ScriptRenderer writes the opaque scripts farm jobs execute.
type ScriptRenderer interface {
	Render(kind scripts.Kind, path string, data any) (string, error)
	WriteCopyBatches(header string, pairs []scripts.CopyPair, batchSize int) ([]string, error)
}

// Targets carries the batch-wide render and farm settings.
type Targets struct {
	Project            string
	SharedDrive        string
	PlateExtension     string
	Outputs            []Output
	FPS                float64
	Priority           int
	ChunkSize          int
	TaskChunkSize      int
	ConcurrentTasks    int
	CopyBatchSize      int
	Pool               string
	SecondaryPool      string
	NukeVersion        string
	NukeExecutable     string
	PythonVersion      string
	ReformatX          int
	ReformatY          int
	CropPreset         string
	MovieCodec         string
	InputColorspace    string
	OutputColorspace   string
	SequenceExtensions []string
	CompTemplate       string
	ShotGridSite       string
	ShotGridScript     string
}

// TargetsFromConfig maps configuration onto Targets.
func TargetsFromConfig(cfg *config.Config) Targets {
	outputs := make([]Output, 0, len(cfg.Render.Outputs))
	for _, output := range cfg.Render.Outputs {
		outputs = append(outputs, Output(output))
	}
	return Targets{
		Project:            cfg.Project.Name,
		SharedDrive:        cfg.Paths.SharedDrive,
		PlateExtension:     cfg.Project.PlateExtension,
		Outputs:            outputs,
		FPS:                cfg.Render.FPS,
		Priority:           cfg.Render.Priority,
		ChunkSize:          cfg.Farm.ChunkSize,
		TaskChunkSize:      cfg.Farm.TaskChunkSize,
		ConcurrentTasks:    cfg.Farm.ConcurrentTasks,
		CopyBatchSize:      cfg.Farm.CopyBatchSize,
		Pool:               cfg.Farm.Pool,
		SecondaryPool:      cfg.Farm.SecondaryPool,
		NukeVersion:        cfg.Farm.NukeVersion,
		NukeExecutable:     cfg.Farm.NukeExecutable,
		PythonVersion:      cfg.Farm.PythonVersion,
		ReformatX:          cfg.Render.ReformatX,
		ReformatY:          cfg.Render.ReformatY,
		CropPreset:         cfg.Render.CropPreset,
		MovieCodec:         cfg.Render.MovieCodec,
		InputColorspace:    cfg.Render.InputColorspace,
		OutputColorspace:   cfg.Render.OutputColorspace,
		SequenceExtensions: cfg.Render.SequenceExtensions,
		CompTemplate:       cfg.Project.DefaultCompScript,
		ShotGridSite:       cfg.ShotGrid.SiteURL,
		ShotGridScript:     cfg.ShotGrid.ScriptName,
	}
}

// BatchName groups every job of a run on the farm.
func (t Targets) BatchName() string {
	return t.Project + " IO Manager Render"
}

func (t Targets) wants(output Output) bool {
	return slices.Contains(t.Outputs, output)
}

const originalCrop = "Original"

// Builder assembles job graphs. Updater and Versions are optional; without
// them the shot's metadata and earlier plate versions are left as they are.
type Builder struct {
	Scripts  ScriptRenderer
	Updater  ShotUpdater
	Versions VersionKeeper
	Exists   func(path string) bool
	Resolve  func(dir string, exts []string) (sequence.Info, error)
	Logger   *slog.Logger
}

// NewBuilder returns a builder with filesystem-backed defaults.
func NewBuilder(renderer ScriptRenderer, updater ShotUpdater, logger *slog.Logger) *Builder {
	return &Builder{
		Scripts: renderer,
		Updater: updater,
		Exists:  pathExists,
		Resolve: sequence.Resolve,
		Logger:  logging.NewComponentLogger(logger, "jobgraph"),
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type buildState struct {
	row     rows.Row
	targets Targets
	layout  Layout
	seq     *sequence.Info
	graph   *Graph
	label   cases.Caser
}

// Build produces the job graph for row. Repository and script errors abort
// the row only; the cache is shared across the rows of one run.
func (b *Builder) Build(ctx context.Context, row rows.Row, targets Targets, cache *ShotCache) (*Graph, error) {
	if b.Scripts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobgraph", "build", "no script renderer", nil)
	}
	if len(targets.Outputs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobgraph", "build", "no outputs requested", nil)
	}
	state := &buildState{
		row:     row,
		targets: targets,
		layout:  NewLayout(targets.SharedDrive, targets.Project, targets.PlateExtension, row),
		graph:   &Graph{Row: row},
		label:   cases.Upper(language.Und),
	}

	if row.Kind == rows.KindSequence {
		info, err := b.resolve(row.SourcePath, targets.SequenceExtensions)
		if err != nil {
			return nil, err
		}
		state.seq = &info
	}

	if cache.Enabled() {
		if err := b.resolveShot(ctx, state, cache); err != nil {
			return nil, err
		}
	}

	scriptIdx, err := b.addScriptJob(state)
	if err != nil {
		return nil, err
	}

	var published []int
	var plateJobs []int
	for _, output := range targets.Outputs {
		if !output.IsSequence() {
			continue
		}
		var idx []int
		if output == OutputPlate && state.pureCopy() {
			idx, err = b.addCopyJobs(state, scriptIdx)
			if err != nil {
				return nil, err
			}
		} else {
			idx = b.addSequenceJobs(state, output, scriptIdx)
		}
		if output == OutputPlate {
			plateJobs = idx
		}
		published = append(published, idx...)
	}
	if targets.wants(OutputMovie) {
		published = append(published, b.addMovieJob(state, scriptIdx))
	}
	if row.PlateType == rows.MainPlate {
		idx, ok, err := b.addCompJob(state, scriptIdx, plateJobs)
		if err != nil {
			return nil, err
		}
		if ok {
			published = append(published, idx)
		}
	}
	if cache.Enabled() {
		if len(published) == 0 {
			published = []int{scriptIdx}
		}
		if _, err := b.addUploadJob(state, published); err != nil {
			return nil, err
		}
	}
	if err := state.graph.Validate(); err != nil {
		return nil, err
	}
	return state.graph, nil
}

func (b *Builder) resolve(dir string, exts []string) (sequence.Info, error) {
	resolve := b.Resolve
	if resolve == nil {
		resolve = sequence.Resolve
	}
	info, err := resolve(dir, exts)
	if err != nil {
		var gap *sequence.GapError
		if errors.As(err, &gap) || errors.Is(err, services.ErrSequenceGap) {
			return sequence.Info{}, err
		}
		return sequence.Info{}, services.Wrap(services.ErrValidation, "jobgraph", "resolve sequence", dir, err)
	}
	return info, nil
}

func (b *Builder) resolveShot(ctx context.Context, s *buildState, cache *ShotCache) error {
	shot, err := cache.Shot(ctx, s.targets.Project, s.row.Sequence, s.row.Shot)
	if err != nil {
		return err
	}
	step := PlateTask
	if s.row.IsEdit() {
		step = EditTask
	}
	task, err := cache.Task(ctx, shot, step)
	if err != nil {
		return err
	}
	if s.row.PlateType == rows.MainPlate {
		if _, err := cache.Task(ctx, shot, CompTask); err != nil {
			return err
		}
	}
	s.graph.Shot = shot
	s.graph.Task = task
	b.updateShot(ctx, s, shot.Shot)
	if !s.row.IsEdit() {
		b.updateVersions(ctx, s, shot.Shot)
	}
	return nil
}

// updateShot records cut and scan metadata on the shot. Failures are logged;
// the publish itself does not depend on them.
func (b *Builder) updateShot(ctx context.Context, s *buildState, shot shotgrid.Entity) {
	if b.Updater == nil {
		return
	}
	fields := ShotFields(s.row, s.layout.PlateVersion, s.targets.FPS)
	if err := b.Updater.UpdateShot(ctx, shot, fields); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, b.Logger), "shot metadata update failed", "shot_update_failed",
			logging.String(logging.FieldShot, s.row.Shot),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check repository permissions for shot fields"),
		)
	}
}

// updateVersions retakes the shot's earlier versions of this plate type and
// rewrites its plate version list. Like updateShot it only warns.
func (b *Builder) updateVersions(ctx context.Context, s *buildState, shot shotgrid.Entity) {
	if b.Versions == nil {
		return
	}
	logger := logging.WithContext(ctx, b.Logger)
	if err := b.Versions.RetakeVersions(ctx, s.targets.Project, s.row.Shot, PlateTask.Task, s.row.TypeLabel()); err != nil {
		logging.WarnWithContext(logger, "retake of earlier plate versions failed", "retake_failed",
			logging.String(logging.FieldShot, s.row.Shot),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set superseded versions to retake by hand"),
		)
	}
	if err := b.Versions.UpdatePlateVersions(ctx, shot, s.row.Shot, s.layout.PlateVersion); err != nil {
		logging.WarnWithContext(logger, "plate version list update failed", "plate_versions_failed",
			logging.String(logging.FieldShot, s.row.Shot),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check repository permissions for sg_plate_versions"),
		)
	}
}

// ShotFields returns the shot metadata published for row. Main plates also
// set the cut range and timecodes.
func ShotFields(row rows.Row, plateVersion string, fps float64) map[string]any {
	fields := map[string]any{
		"sg_clip_name":        plateVersion + " : " + row.ClipName,
		"sg_scan_path":        plateVersion + " : " + row.SourcePath,
		"sg_plate_resolution": plateVersion + " : " + row.Resolution,
	}
	if row.PlateType != rows.MainPlate {
		return fields
	}
	fields["sg_cut_in"] = row.StartFrame
	fields["sg_cut_out"] = row.EndFrame
	fields["sg_cut_duration"] = row.Duration
	if row.SourceTimecodeIn != nil {
		tcIn := frames.TimecodeFromFrames(row.SourceTimecodeIn.Frames(fps)+row.FirstFrameOffset, fps)
		fields["sg_tc_in"] = tcIn.String()
		fields["sg_tc_out"] = frames.TimecodeFromFrames(tcIn.Frames(fps)+row.OrgRange.Duration()-row.FirstFrameOffset-row.EndFrameOffset-1, fps).String()
	}
	return fields
}

// pureCopy reports whether plate frames can be copied instead of rendered.
func (s *buildState) pureCopy() bool {
	if s.seq == nil || s.row.Kind != rows.KindSequence {
		return false
	}
	if s.targets.ReformatX != 0 || s.targets.ReformatY != 0 {
		return false
	}
	if s.targets.CropPreset != "" && s.targets.CropPreset != originalCrop {
		return false
	}
	if s.row.IsRetimed() || s.row.OrgRange.Duration() != s.row.Duration {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(s.seq.Ext, "."), s.targets.PlateExtension)
}

func (s *buildState) base(kind Kind, name, plugin string) Job {
	return Job{
		Kind:          kind,
		Name:          name,
		BatchName:     s.targets.BatchName(),
		Pool:          s.targets.Pool,
		SecondaryPool: s.targets.SecondaryPool,
		Plugin:        plugin,
		Priority:      s.targets.Priority,
		ChunkSize:     1,
	}
}

func (s *buildState) source() string {
	if s.seq != nil {
		return s.seq.Pattern()
	}
	return s.row.SourcePath
}

func (s *buildState) writes() []scripts.Write {
	var writes []scripts.Write
	for _, output := range s.targets.Outputs {
		if output == OutputPlate && s.pureCopy() {
			continue
		}
		fileType := string(output)
		if output == OutputPlate {
			fileType = s.targets.PlateExtension
		}
		writes = append(writes, scripts.Write{
			Node:     writeNode(output),
			Path:     s.layout.Output(output),
			FileType: fileType,
		})
	}
	return writes
}

func writeNode(output Output) string {
	return "Write" + cases.Upper(language.Und).String(string(output))
}

func (b *Builder) addScriptJob(s *buildState) (int, error) {
	retimeEnd := 0
	if s.row.RetimeEndFrame != nil {
		retimeEnd = *s.row.RetimeEndFrame
	}
	data := scripts.RenderData{
		ScriptPath:       s.layout.RenderScene(),
		ConnectName:      s.layout.Connect,
		Source:           s.source(),
		Range:            s.row.WorkingRange(),
		OrgRange:         s.row.OrgRange,
		FirstFrameOffset: s.row.FirstFrameOffset,
		RetimeEndFrame:   retimeEnd,
		FPS:              s.targets.FPS,
		ReformatX:        s.targets.ReformatX,
		ReformatY:        s.targets.ReformatY,
		CropPreset:       s.targets.CropPreset,
		InputColorspace:  s.targets.InputColorspace,
		OutputColorspace: s.targets.OutputColorspace,
		MovieCodec:       s.targets.MovieCodec,
		Cube:             s.row.Cube,
		Writes:           s.writes(),
	}
	script, err := b.Scripts.Render(scripts.KindRender, s.layout.RenderScript(), data)
	if err != nil {
		return 0, err
	}
	job := s.base(KindScript, fmt.Sprintf("[%s] - Make Render NK", s.layout.Connect), farm.PluginCommandLine)
	job.Script = script
	job.PluginInfo = commandLineInfo(s.targets.NukeExecutable, s.layout.ConnectDir, script)
	return s.graph.add(job), nil
}

func commandLineInfo(executable, dir, script string) map[string]string {
	return map[string]string{
		"Shell":            "default",
		"ShellExecute":     "false",
		"SingleFramesOnly": "true",
		"StartupDirectory": dir,
		"Executable":       executable,
		"Arguments":        fmt.Sprintf("--nukex -t %q", script),
	}
}

func (s *buildState) nukeInfo(output Output) map[string]string {
	return map[string]string{
		"Version":            s.targets.NukeVersion,
		"NukeX":              "true",
		"BatchMode":          "true",
		"BatchModeIsMovie":   strconv.FormatBool(output == OutputMovie),
		"Threads":            "0",
		"RamUse":             "0",
		"UseGpu":             "true",
		"GpuOverride":        "0",
		"RenderMode":         "Use Scene Settings",
		"EnforceRenderOrder": "false",
		"ContinueOnError":    "false",
		"Arguments":          "-i",
		"SceneFile":          s.layout.RenderScene(),
		"WriteNode":          writeNode(output),
	}
}

func (b *Builder) addSequenceJobs(s *buildState, output Output, scriptIdx int) []int {
	chunks := frames.Plan(s.row.WorkingRange(), s.targets.ChunkSize)
	label := s.label.String(string(output))
	out := make([]int, 0, len(chunks))
	for i, chunk := range chunks {
		job := s.base(KindRenderSequence, fmt.Sprintf("[%s] - %s%d", s.layout.Connect, label, i+1), farm.PluginNuke)
		job.Output = output
		job.Range = chunk
		job.ChunkSize = max(s.targets.TaskChunkSize, 1)
		job.ConcurrentTasks = s.targets.ConcurrentTasks
		job.DependsOn = []int{scriptIdx}
		job.Script = s.layout.RenderScene()
		job.PluginInfo = s.nukeInfo(output)
		out = append(out, s.graph.add(job))
	}
	return out
}

func (b *Builder) addMovieJob(s *buildState, scriptIdx int) int {
	working := s.row.WorkingRange()
	job := s.base(KindRenderMovie, fmt.Sprintf("[%s] - MOV", s.layout.Connect), farm.PluginNuke)
	job.Output = OutputMovie
	job.Priority = max(s.targets.Priority, 0)
	job.Range = working
	job.ChunkSize = working.Duration()
	job.ConcurrentTasks = 1
	job.DependsOn = []int{scriptIdx}
	job.Script = s.layout.RenderScene()
	job.PluginInfo = s.nukeInfo(OutputMovie)
	return s.graph.add(job)
}

// CopyPairs maps every source frame to its renumbered plate path.
func CopyPairs(info sequence.Info, row rows.Row, platePattern string) []scripts.CopyPair {
	first := row.StartFrame - row.FirstFrameOffset
	pairs := make([]scripts.CopyPair, 0, info.End-info.Start+1)
	for frame := info.Start; frame <= info.End; frame++ {
		src, ok := info.Path(frame)
		if !ok {
			continue
		}
		pairs = append(pairs, scripts.CopyPair{
			Source: src,
			Target: fmt.Sprintf(platePattern, first+frame-info.Start),
		})
	}
	return pairs
}

func (b *Builder) addCopyJobs(s *buildState, scriptIdx int) ([]int, error) {
	platePattern := s.layout.Output(OutputPlate)
	pairs := CopyPairs(*s.seq, s.row, platePattern)
	paths, err := b.Scripts.WriteCopyBatches(s.layout.CopyHeader(), pairs, s.targets.CopyBatchSize)
	if err != nil {
		return nil, err
	}
	destDir := filepath.Base(filepath.Dir(platePattern))
	srcDir := filepath.Base(s.seq.Dir)
	out := make([]int, 0, len(paths))
	for i, path := range paths {
		job := s.base(KindCopy, fmt.Sprintf("[%s] - %d_Copy from %s", destDir, i+1, srcDir), farm.PluginPython)
		job.Output = OutputPlate
		job.Range = frames.Range{Start: 1, End: 1}
		job.ConcurrentTasks = s.targets.ConcurrentTasks
		job.DependsOn = []int{scriptIdx}
		job.Script = path
		job.PluginInfo = s.pythonInfo(path)
		out = append(out, s.graph.add(job))
	}
	return out, nil
}

func (s *buildState) pythonInfo(script string) map[string]string {
	return map[string]string{
		"SingleFramesOnly": "true",
		"Version":          s.targets.PythonVersion,
		"ScriptFile":       script,
	}
}

const compVersion = "v001"

func (b *Builder) addCompJob(s *buildState, scriptIdx int, plateJobs []int) (int, bool, error) {
	shot := s.row.Shot
	compScript := s.layout.CompScript(shot)
	exists := b.Exists
	if exists == nil {
		exists = pathExists
	}
	if exists(compScript) {
		return 0, false, nil
	}
	data := scripts.CompData{
		Shot:        shot,
		Template:    s.targets.CompTemplate,
		WorkPath:    s.layout.CompScene(shot),
		Plate:       s.layout.Output(OutputPlate),
		Range:       s.row.WorkingRange(),
		ImageOutput: s.layout.CompImages(shot, compVersion),
		MovieOutput: s.layout.CompReview(shot, compVersion),
	}
	script, err := b.Scripts.Render(scripts.KindComp, compScript, data)
	if err != nil {
		return 0, false, err
	}
	job := s.base(KindComp, fmt.Sprintf("[%s] - Make Comp NK", s.layout.Connect), farm.PluginCommandLine)
	job.Script = script
	job.DependsOn = append([]int{scriptIdx}, plateJobs...)
	job.PluginInfo = commandLineInfo(s.targets.NukeExecutable, filepath.Dir(compScript), script)
	return s.graph.add(job), true, nil
}

func (b *Builder) addUploadJob(s *buildState, deps []int) (int, error) {
	movie := ""
	if s.targets.wants(OutputMovie) {
		movie = s.layout.Output(OutputMovie)
	}
	media := movie
	if media == "" {
		for _, output := range s.targets.Outputs {
			if output.IsSequence() {
				media = s.layout.Output(output)
				break
			}
		}
	}
	data := scripts.UploadData{
		SiteURL:     s.targets.ShotGridSite,
		ScriptName:  s.targets.ShotGridScript,
		ProjectID:   s.graph.Shot.Project.ID,
		ShotID:      s.graph.Shot.Shot.ID,
		TaskID:      s.graph.Task.ID,
		Code:        s.layout.Connect,
		Description: s.row.Description,
		Status:      "rev",
		Media:       media,
		Movie:       movie,
		Range:       s.row.WorkingRange(),
		FPS:         s.targets.FPS,
	}
	script, err := b.Scripts.Render(scripts.KindUpload, s.layout.UploadScript(), data)
	if err != nil {
		return 0, err
	}
	job := s.base(KindUpload, fmt.Sprintf("[%s] - SG Upload", s.layout.Connect), farm.PluginPython)
	job.Pool = sgPool(s.targets.Pool)
	job.SecondaryPool = sgPool(s.targets.SecondaryPool)
	job.Range = frames.Range{Start: 1, End: 1}
	job.DependsOn = slices.Clone(deps)
	job.Script = script
	job.PluginInfo = s.pythonInfo(script)
	return s.graph.add(job), nil
}

func sgPool(pool string) string {
	if pool == "" {
		return ""
	}
	return pool + "-sg"
}
