package farm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"iomanager/internal/config"
	"iomanager/internal/services"
)

// HTTPDoer describes the HTTP client used by the Deadline client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Deadline submits jobs through the Deadline Web Service.
type Deadline struct {
	baseURL string
	user    string
	client  HTTPDoer
}

// NewConfiguredDeadline builds a client from the farm configuration.
func NewConfiguredDeadline(cfg *config.Config) *Deadline {
	return NewDeadline(cfg.Farm.URL, cfg.Farm.User, http.DefaultClient)
}

// NewDeadline constructs a Deadline client.
func NewDeadline(baseURL, user string, client HTTPDoer) *Deadline {
	if client == nil {
		client = http.DefaultClient
	}
	return &Deadline{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		user:    strings.TrimSpace(user),
		client:  client,
	}
}

type submitRequest struct {
	JobInfo    map[string]string `json:"JobInfo"`
	PluginInfo map[string]string `json:"PluginInfo"`
	AuxFiles   []string          `json:"AuxFiles"`
	IdOnly     bool              `json:"IdOnly"`
}

type submitResponse struct {
	ID string `json:"_id"`
}

// JobInfo renders spec as Deadline job info keys.
func (d *Deadline) JobInfo(spec Spec) map[string]string {
	info := map[string]string{
		"Name":                         spec.Name,
		"BatchName":                    spec.BatchName,
		"UserName":                     d.user,
		"Pool":                         spec.Pool,
		"SecondaryPool":                spec.SecondaryPool,
		"Priority":                     strconv.Itoa(spec.Priority),
		"Plugin":                       spec.Plugin,
		"Frames":                       spec.Frames.Frames(),
		"ChunkSize":                    strconv.Itoa(max(spec.ChunkSize, 1)),
		"ResumeOnCompleteDependencies": "true",
		"ResumeOnDeletedDependencies":  "false",
		"ResumeOnFailedDependencies":   "false",
	}
	if spec.ConcurrentTasks > 0 {
		info["ConcurrentTasks"] = strconv.Itoa(spec.ConcurrentTasks)
	}
	for i, dep := range spec.Dependencies {
		info[fmt.Sprintf("JobDependency%d", i)] = string(dep)
	}
	return info
}

// Submit posts spec to /api/jobs and returns the new job id.
func (d *Deadline) Submit(ctx context.Context, spec Spec) (JobID, error) {
	pluginInfo := spec.PluginInfo
	if pluginInfo == nil {
		pluginInfo = map[string]string{}
	}
	body, err := json.Marshal(submitRequest{
		JobInfo:    d.JobInfo(spec),
		PluginInfo: pluginInfo,
		AuxFiles:   []string{},
		IdOnly:     true,
	})
	if err != nil {
		return "", fmt.Errorf("encode deadline job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build deadline request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", services.ErrTimeout, err)
		}
		return "", services.Wrap(services.ErrSubmission, "farm", "submit", spec.Name, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "farm", "read response", spec.Name, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(string(payload))
		return "", services.Wrap(services.ErrSubmission, "farm", "submit",
			fmt.Sprintf("%s: deadline returned %d %s", spec.Name, resp.StatusCode, detail), nil)
	}
	var decoded submitResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", services.Wrap(services.ErrSubmission, "farm", "decode response", spec.Name, err)
	}
	if decoded.ID == "" {
		return "", services.Wrap(services.ErrSubmission, "farm", "decode response", spec.Name+": empty job id", nil)
	}
	return JobID(decoded.ID), nil
}

// Ping checks that the web service answers.
func (d *Deadline) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/pools", nil)
	if err != nil {
		return fmt.Errorf("build deadline request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach deadline: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("deadline returned %d", resp.StatusCode)
	}
	return nil
}
