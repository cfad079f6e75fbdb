package shotgrid

import (
	"context"
	"fmt"

	"iomanager/internal/services"
)

// FindProject resolves a project by name. Projects are never created.
func (c *Client) FindProject(ctx context.Context, name string) (Entity, error) {
	project, ok, err := c.Find(ctx, "Project", []Filter{Is("name", name)}, "name")
	if err != nil {
		return Entity{}, err
	}
	if !ok {
		return Entity{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "find project", fmt.Sprintf("project %q not found", name), nil)
	}
	return project, nil
}

func (c *Client) findOrCreate(ctx context.Context, entityType string, filters []Filter, nameField string, fields map[string]any) (Entity, error) {
	found, ok, err := c.Find(ctx, entityType, filters, nameField)
	if err != nil {
		return Entity{}, err
	}
	if ok {
		return found, nil
	}
	return c.Create(ctx, entityType, fields, nameField)
}

// FindOrCreateShot resolves project, sequence and shot, creating the
// sequence and shot when missing.
func (c *Client) FindOrCreateShot(ctx context.Context, project, sequence, shot string) (Shot, error) {
	proj, err := c.FindProject(ctx, project)
	if err != nil {
		return Shot{}, err
	}
	projectRef := map[string]any{"type": proj.Type, "id": proj.ID}
	seq, err := c.findOrCreate(ctx, "Sequence",
		[]Filter{Is("project", projectRef), Is("code", sequence)}, "code",
		map[string]any{"project": projectRef, "code": sequence})
	if err != nil {
		return Shot{}, err
	}
	seqRef := map[string]any{"type": seq.Type, "id": seq.ID}
	sh, err := c.findOrCreate(ctx, "Shot",
		[]Filter{Is("project", projectRef), Is("code", shot)}, "code",
		map[string]any{"project": projectRef, "code": shot, "sg_sequence": seqRef})
	if err != nil {
		return Shot{}, err
	}
	return Shot{Project: proj, Sequence: seq, Shot: sh}, nil
}

// FindOrCreateTask resolves a task named task on shot under the pipeline
// step identified by step and stepShort.
func (c *Client) FindOrCreateTask(ctx context.Context, project, shot Entity, step, stepShort, task string) (Entity, error) {
	shotRef := map[string]any{"type": shot.Type, "id": shot.ID}
	found, ok, err := c.Find(ctx, "Task", []Filter{Is("entity", shotRef), Is("content", task)}, "content")
	if err != nil {
		return Entity{}, err
	}
	if ok {
		return found, nil
	}
	stepEntity, ok, err := c.Find(ctx, "Step", []Filter{Is("code", step), Is("short_name", stepShort)}, "code")
	if err != nil {
		return Entity{}, err
	}
	if !ok {
		return Entity{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "find step", fmt.Sprintf("step %s/%s not found", step, stepShort), nil)
	}
	return c.Create(ctx, "Task", map[string]any{
		"project": map[string]any{"type": project.Type, "id": project.ID},
		"entity":  shotRef,
		"content": task,
		"step":    map[string]any{"type": stepEntity.Type, "id": stepEntity.ID},
	}, "content")
}

// UpdateShot writes fields onto shot.
func (c *Client) UpdateShot(ctx context.Context, shot Entity, fields map[string]any) error {
	return c.Update(ctx, shot, fields)
}

// UpdateTaskStatus sets sg_status_list on task.
func (c *Client) UpdateTaskStatus(ctx context.Context, task Entity, status string) error {
	return c.Update(ctx, task, map[string]any{"sg_status_list": status})
}

// VersionSpec describes a published version.
type VersionSpec struct {
	Project     Entity
	Shot        Entity
	Task        Entity
	Code        string
	Description string
	MoviePath   string
	Status      string
}

// CreateVersion registers a version against a shot and task.
func (c *Client) CreateVersion(ctx context.Context, spec VersionSpec) (Entity, error) {
	fields := map[string]any{
		"project":     map[string]any{"type": spec.Project.Type, "id": spec.Project.ID},
		"entity":      map[string]any{"type": spec.Shot.Type, "id": spec.Shot.ID},
		"sg_task":     map[string]any{"type": spec.Task.Type, "id": spec.Task.ID},
		"code":        spec.Code,
		"description": spec.Description,
	}
	if spec.MoviePath != "" {
		fields["sg_path_to_movie"] = spec.MoviePath
	}
	if spec.Status != "" {
		fields["sg_status_list"] = spec.Status
	}
	return c.Create(ctx, "Version", fields, "code")
}

// Ping verifies that the credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}
