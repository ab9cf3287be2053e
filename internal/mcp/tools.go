package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"codexvault/internal/props"
	"codexvault/internal/scheduler"
	"codexvault/internal/store"
)

type ListModulesInput struct{}

type GetModuleStatusInput struct {
	Module string `json:"module" jsonschema:"module id"`
}

type ListEntitiesInput struct {
	Module string `json:"module" jsonschema:"module id"`
	Type   string `json:"type,omitempty" jsonschema:"entity type filter"`
}

type GetEntityInput struct {
	Module string `json:"module" jsonschema:"module id"`
	Entity string `json:"entity" jsonschema:"entity id"`
}

type SearchEntitiesInput struct {
	Query  string `json:"query" jsonschema:"search terms"`
	Module string `json:"module,omitempty" jsonschema:"restrict to a specific module"`
	Type   string `json:"type,omitempty" jsonschema:"restrict to a specific entity type"`
}

type ScheduleValidationInput struct {
	Module   string `json:"module" jsonschema:"module id"`
	Priority bool   `json:"priority,omitempty" jsonschema:"jump the queue when true"`
}

type GetJobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"validation job id"`
}

type ListJobsInput struct {
	Module string `json:"module,omitempty" jsonschema:"only jobs for this module"`
}

type CancelValidationInput struct {
	JobID string `json:"job_id" jsonschema:"validation job id"`
}

type ModuleOutput struct {
	ModuleID    string     `json:"module_id"`
	SystemID    string     `json:"system_id"`
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Status      string     `json:"status"`
	Active      bool       `json:"active"`
	LoadErrors  []string   `json:"load_errors,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	LoadedAt    time.Time  `json:"loaded_at"`
}

type ListModulesOutput struct {
	Modules []ModuleOutput `json:"modules"`
}

type ModuleStatusOutput struct {
	ModuleID      string     `json:"module_id"`
	Status        string     `json:"status"`
	EntityCount   int        `json:"entity_count"`
	PropertyCount int        `json:"property_count"`
	Errors        []string   `json:"errors,omitempty"`
	ValidatedAt   *time.Time `json:"validated_at,omitempty"`
}

type EntitySummaryOutput struct {
	EntityID   string   `json:"entity_id"`
	EntityType string   `json:"type"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
}

type ListEntitiesOutput struct {
	Entities []EntitySummaryOutput `json:"entities"`
}

type EntityOutput struct {
	ModuleID    string         `json:"module_id"`
	EntityID    string         `json:"entity_id"`
	EntityType  string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Image       string         `json:"image,omitempty"`
	TemplateID  string         `json:"template_id,omitempty"`
	Tags        []string       `json:"tags"`
	Data        map[string]any `json:"data"`
}

type SearchResultOutput struct {
	ModuleID   string   `json:"module_id"`
	EntityID   string   `json:"entity_id"`
	EntityType string   `json:"type"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Score      float64  `json:"score"`
	Snippet    string   `json:"snippet,omitempty"`
}

type SearchEntitiesOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type JobOutput struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"module_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Done        int        `json:"done"`
	Total       int        `json:"total"`
	Errors      int        `json:"errors"`
	Issues      int        `json:"issues"`
	Error       string     `json:"error,omitempty"`
}

type ListJobsOutput struct {
	Jobs []JobOutput `json:"jobs"`
}

type CancelValidationOutput struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_modules",
		Description: "List loaded content modules and their validation state",
	}, s.handleListModules)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_module_status",
		Description: "Entity and property counts plus load errors for one module",
	}, s.handleGetModuleStatus)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entities",
		Description: "List entities of a module with an optional type filter",
	}, s.handleListEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Retrieve an entity with its payload rebuilt from stored attributes",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entities",
		Description: "Full-text search over entity names, tags, and text",
	}, s.handleSearchEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "schedule_validation",
		Description: "Queue a background validation run for a module",
	}, s.handleScheduleValidation)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_job_status",
		Description: "Status and progress of a validation job",
	}, s.handleGetJobStatus)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_jobs",
		Description: "List validation jobs, optionally for one module",
	}, s.handleListJobs)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "cancel_validation",
		Description: "Cancel a pending or running validation job",
	}, s.handleCancelValidation)
}

func (s *Server) handleListModules(ctx context.Context, req *sdk.CallToolRequest, input ListModulesInput) (*sdk.CallToolResult, ListModulesOutput, error) {
	modules, err := s.db.ListModules(ctx)
	if err != nil {
		return nil, ListModulesOutput{}, err
	}
	output := make([]ModuleOutput, 0, len(modules))
	for _, module := range modules {
		output = append(output, moduleOutputFromStore(module))
	}
	return nil, ListModulesOutput{Modules: output}, nil
}

func (s *Server) handleGetModuleStatus(ctx context.Context, req *sdk.CallToolRequest, input GetModuleStatusInput) (*sdk.CallToolResult, ModuleStatusOutput, error) {
	if input.Module == "" {
		return nil, ModuleStatusOutput{}, fmt.Errorf("module is required")
	}
	status, err := s.db.GetModuleStatus(ctx, input.Module)
	if err != nil {
		return nil, ModuleStatusOutput{}, err
	}
	if status == nil {
		return nil, ModuleStatusOutput{}, fmt.Errorf("module not found")
	}
	return nil, ModuleStatusOutput{
		ModuleID:      status.ModuleID,
		Status:        string(status.Status),
		EntityCount:   status.EntityCount,
		PropertyCount: status.PropertyCount,
		Errors:        status.Errors,
		ValidatedAt:   status.ValidatedAt,
	}, nil
}

func (s *Server) handleListEntities(ctx context.Context, req *sdk.CallToolRequest, input ListEntitiesInput) (*sdk.CallToolResult, ListEntitiesOutput, error) {
	if input.Module == "" {
		return nil, ListEntitiesOutput{}, fmt.Errorf("module is required")
	}
	items, err := s.db.ListEntities(ctx, input.Module, input.Type)
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}
	output := make([]EntitySummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, EntitySummaryOutput{
			EntityID:   item.EntityID,
			EntityType: item.EntityType,
			Name:       item.Name,
			Tags:       append([]string{}, item.Tags...),
			Status:     string(item.Status),
		})
	}
	return nil, ListEntitiesOutput{Entities: output}, nil
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	if input.Module == "" || input.Entity == "" {
		return nil, EntityOutput{}, fmt.Errorf("module and entity are required")
	}
	entity, err := s.db.GetEntity(ctx, input.Module, input.Entity)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	if entity == nil {
		return nil, EntityOutput{}, fmt.Errorf("entity not found")
	}

	attrs, err := s.db.GetEntityAttributes(ctx, input.Module, input.Entity)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	data, err := props.Reconstruct(attrs)
	if err != nil {
		return nil, EntityOutput{}, fmt.Errorf("rebuilding payload: %w", err)
	}

	return nil, EntityOutput{
		ModuleID:    entity.ModuleID,
		EntityID:    entity.EntityID,
		EntityType:  entity.EntityType,
		Name:        entity.Name,
		Description: entity.Description,
		Image:       entity.Image,
		TemplateID:  entity.TemplateID,
		Tags:        append([]string{}, entity.Tags...),
		Data:        data,
	}, nil
}

func (s *Server) handleSearchEntities(ctx context.Context, req *sdk.CallToolRequest, input SearchEntitiesInput) (*sdk.CallToolResult, SearchEntitiesOutput, error) {
	if input.Query == "" {
		return nil, SearchEntitiesOutput{}, fmt.Errorf("query is required")
	}
	results, err := s.db.Search(ctx, input.Query, input.Module, input.Type)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}
	output := make([]SearchResultOutput, 0, len(results))
	for _, result := range results {
		output = append(output, SearchResultOutput{
			ModuleID:   result.ModuleID,
			EntityID:   result.EntityID,
			EntityType: result.EntityType,
			Name:       result.Name,
			Tags:       append([]string{}, result.Tags...),
			Score:      result.Score,
			Snippet:    result.Snippet,
		})
	}
	return nil, SearchEntitiesOutput{Results: output}, nil
}

func (s *Server) handleScheduleValidation(ctx context.Context, req *sdk.CallToolRequest, input ScheduleValidationInput) (*sdk.CallToolResult, JobOutput, error) {
	if input.Module == "" {
		return nil, JobOutput{}, fmt.Errorf("module is required")
	}
	job, err := s.sched.ScheduleValidation(ctx, input.Module, input.Priority)
	if err != nil {
		return nil, JobOutput{}, err
	}
	return nil, jobOutputFromScheduler(job), nil
}

func (s *Server) handleGetJobStatus(ctx context.Context, req *sdk.CallToolRequest, input GetJobStatusInput) (*sdk.CallToolResult, JobOutput, error) {
	if input.JobID == "" {
		return nil, JobOutput{}, fmt.Errorf("job_id is required")
	}
	job, err := s.sched.GetJobStatus(input.JobID)
	if err != nil {
		return nil, JobOutput{}, err
	}
	return nil, jobOutputFromScheduler(job), nil
}

func (s *Server) handleListJobs(ctx context.Context, req *sdk.CallToolRequest, input ListJobsInput) (*sdk.CallToolResult, ListJobsOutput, error) {
	var jobs []*scheduler.Job
	if input.Module != "" {
		jobs = s.sched.GetModuleJobs(input.Module)
	} else {
		jobs = s.sched.GetActiveJobs()
	}
	output := make([]JobOutput, 0, len(jobs))
	for _, job := range jobs {
		output = append(output, jobOutputFromScheduler(job))
	}
	return nil, ListJobsOutput{Jobs: output}, nil
}

func (s *Server) handleCancelValidation(ctx context.Context, req *sdk.CallToolRequest, input CancelValidationInput) (*sdk.CallToolResult, CancelValidationOutput, error) {
	if input.JobID == "" {
		return nil, CancelValidationOutput{}, fmt.Errorf("job_id is required")
	}
	if err := s.sched.CancelValidation(input.JobID); err != nil {
		return nil, CancelValidationOutput{}, err
	}
	return nil, CancelValidationOutput{Cancelled: true}, nil
}

func moduleOutputFromStore(module store.Module) ModuleOutput {
	return ModuleOutput{
		ModuleID:    module.ModuleID,
		SystemID:    module.SystemID,
		Name:        module.Name,
		Version:     module.Version,
		Status:      string(module.Status),
		Active:      module.Active,
		LoadErrors:  module.LoadErrors,
		ValidatedAt: module.ValidatedAt,
		LoadedAt:    module.LoadedAt,
	}
}

func jobOutputFromScheduler(job *scheduler.Job) JobOutput {
	return JobOutput{
		ID:          job.ID,
		ModuleID:    job.ModuleID,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Done:        job.Done,
		Total:       job.Total,
		Errors:      job.Errors,
		Issues:      job.Issues,
		Error:       job.Error,
	}
}
