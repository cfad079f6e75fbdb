package shotgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"iomanager/internal/services"
)

const (
	// RetakeStatus marks versions superseded by a new publish.
	RetakeStatus = "retake"
	// ApprovedStatus marks plate versions listed on the shot.
	ApprovedStatus = "po"

	searchPageSize = 500
)

// StartsWith builds a prefix filter.
func StartsWith(field, prefix string) Filter { return Filter{field, "starts_with", prefix} }

// Record is a search hit with the requested attributes.
type Record struct {
	Entity
	Attributes map[string]any
}

// String returns attribute field as a string, or "".
func (r Record) String(field string) string {
	value, _ := r.Attributes[field].(string)
	return value
}

// FindAll returns every entity of entityType matching filters, with fields
// populated. Results are paged until the site runs out.
func (c *Client) FindAll(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Record, error) {
	var out []Record
	for page := 1; ; page++ {
		var decoded struct {
			Data []record `json:"data"`
		}
		path := fmt.Sprintf("/api/v1/entity/%s/_search?page[size]=%d&page[number]=%d", url.PathEscape(entityType), searchPageSize, page)
		req := searchRequest{Filters: filters, Fields: fields}
		if err := c.call(ctx, http.MethodPost, path, searchContentType, req, &decoded); err != nil {
			return nil, services.Wrap(services.ErrRemoteLookup, "shotgrid", "search "+entityType, describe(filters), err)
		}
		for _, rec := range decoded.Data {
			entity := Entity{Type: rec.Type, ID: rec.ID}
			if entity.Type == "" {
				entity.Type = entityType
			}
			out = append(out, Record{Entity: entity, Attributes: rec.Attributes})
		}
		if len(decoded.Data) < searchPageSize {
			return out, nil
		}
	}
}

func versionPrefix(shot, typeLabel string) string {
	return shot + "_" + typeLabel + "_v"
}

// NextVersion returns one past the highest published version of shot's
// typeLabel plates (A01_001_mp0_v003 gives 4), or 1 when none exist.
func (c *Client) NextVersion(ctx context.Context, project, sequence, shot, typeLabel string) (int, error) {
	prefix := versionPrefix(shot, typeLabel)
	found, err := c.FindAll(ctx, "Version", []Filter{
		Is("project.Project.name", project),
		Is("entity.Shot.sg_sequence.Sequence.code", sequence),
		Is("entity.Shot.code", shot),
		StartsWith("code", prefix),
	}, []string{"code"})
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, rec := range found {
		if n, ok := parseVersion(strings.TrimPrefix(rec.String("code"), prefix)); ok {
			highest = max(highest, n)
		}
	}
	return highest + 1, nil
}

// parseVersion reads the leading digits of "003" or "003_260309".
func parseVersion(rest string) (int, bool) {
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	return n, err == nil
}

// ShotLUT returns the shot's sg_luts value, or "" when the shot or field
// is missing.
func (c *Client) ShotLUT(ctx context.Context, project, sequence, shot string) (string, error) {
	found, err := c.FindAll(ctx, "Shot", []Filter{
		Is("project.Project.name", project),
		Is("sg_sequence.Sequence.code", sequence),
		Is("code", shot),
	}, []string{"sg_luts"})
	if err != nil || len(found) == 0 {
		return "", err
	}
	return strings.TrimSpace(found[0].String("sg_luts")), nil
}

// RetakeVersions sets every existing typeLabel version on shot's task to
// retake. It runs before a new version is registered, so the new one is
// never touched. Per-version failures are joined.
func (c *Client) RetakeVersions(ctx context.Context, project, shot, task, typeLabel string) error {
	found, err := c.FindAll(ctx, "Version", []Filter{
		Is("project.Project.name", project),
		Is("entity.Shot.code", shot),
		Is("sg_task.Task.content", task),
		StartsWith("code", versionPrefix(shot, typeLabel)),
	}, []string{"code"})
	if err != nil {
		return err
	}
	var errs []error
	for _, rec := range found {
		if err := c.Update(ctx, rec.Entity, map[string]any{"sg_status_list": RetakeStatus}); err != nil {
			errs = append(errs, fmt.Errorf("retake %s: %w", rec.String("code"), err))
		}
	}
	return errors.Join(errs...)
}

var plateVersionPattern = regexp.MustCompile(`^((?:rp|mp|sp)\d)(_v\d+)`)

// UpdatePlateVersions writes the shot's sg_plate_versions list: current
// (e.g. "mp0_v002") plus every approved plate version, one per line,
// ordered by SortPlateVersions.
func (c *Client) UpdatePlateVersions(ctx context.Context, shot Entity, shotCode, current string) error {
	found, err := c.FindAll(ctx, "Version", []Filter{
		Is("entity", map[string]any{"type": shot.Type, "id": shot.ID}),
		Is("sg_task.Task.content", "plate"),
		Is("sg_status_list", ApprovedStatus),
		StartsWith("code", shotCode+"_"),
	}, []string{"code"})
	if err != nil {
		return err
	}
	list := []string{current}
	for _, rec := range found {
		rest, ok := strings.CutPrefix(rec.String("code"), shotCode+"_")
		if !ok {
			continue
		}
		m := plateVersionPattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		if entry := m[1] + m[2]; !slices.Contains(list, entry) {
			list = append(list, entry)
		}
	}
	SortPlateVersions(list)
	return c.Update(ctx, shot, map[string]any{"sg_plate_versions": strings.Join(list, "\n")})
}

// SortPlateVersions orders "mp0_v002" style entries: reference plates,
// then main, then sub plates; within a type higher plate numbers first,
// then higher versions first. Unrecognised entries sort last.
func SortPlateVersions(list []string) {
	slices.SortStableFunc(list, func(a, b string) int {
		ka, kb := plateSortKey(a), plateSortKey(b)
		for i := range ka {
			if ka[i] != kb[i] {
				return ka[i] - kb[i]
			}
		}
		return 0
	})
}

func plateSortKey(entry string) [3]int {
	prefix, rest, ok := strings.Cut(entry, "_")
	if !ok || len(prefix) < 2 {
		return [3]int{3, 0, 0}
	}
	priority := map[string]int{"rp": 0, "mp": 1, "sp": 2}
	p, known := priority[prefix[:2]]
	if !known {
		p = 3
	}
	number, _ := strconv.Atoi(prefix[2:])
	version, _ := strconv.Atoi(strings.TrimPrefix(rest, "v"))
	return [3]int{p, -number, -version}
}
