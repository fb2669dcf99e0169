// Package mcp provides a Model Context Protocol server for the course
// clustering service.
//
// It exposes enrollment tracking, course metadata management, clustering
// runs, and the persisted category mapping as MCP tools, plus the current
// mapping and store statistics as MCP resources. Runs over stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/privacywhen/coursecluster/internal/cluster"
	"github.com/privacywhen/coursecluster/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   *store.SQLiteStore
	Engine  *cluster.Engine
	Version string
	Logger  zerolog.Logger
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and a
// clustering run must see a consistent enrollment snapshot.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all clustering tools
// and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"CourseCluster",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerClusterRunTool(s, cfg.Store, cfg.Engine, cfg.Logger)
	registerMappingGetTool(s, cfg.Store)
	registerEnrollTool(s, cfg.Store)
	registerUnenrollTool(s, cfg.Store)
	registerCourseSetTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerMappingResource(s, cfg.Store)
	registerStatsResource(s, cfg.Store)

	return s
}

// --- Tools ---

func registerClusterRunTool(s *server.MCPServer, st *store.SQLiteStore, engine *cluster.Engine, log zerolog.Logger) {
	tool := mcp.NewTool("cluster_run",
		mcp.WithDescription("Run the clustering pipeline over the current enrollment snapshot and persist the resulting course-to-category mapping. Returns the mapping that was saved."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithBoolean("dry_run",
			mcp.Description("Compute the mapping without persisting it (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		dryRun := req.GetBool("dry_run", false)

		raw, err := st.FetchMembership(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetching enrollments: %v", err)), nil
		}
		metadata, err := st.FetchMetadata(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetching metadata: %v", err)), nil
		}

		mapping, err := engine.Cluster(raw, metadata)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clustering: %v", err)), nil
		}

		if !dryRun {
			if err := st.SaveMapping(ctx, mapping); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving mapping: %v", err)), nil
			}
		}
		log.Info().Int("courses", len(mapping)).Bool("persisted", !dryRun).Msg("clustering run complete")

		byLabel := make(map[string][]string)
		for courseID, label := range mapping {
			byLabel[label] = append(byLabel[label], fmt.Sprintf("%d", courseID))
		}
		result := map[string]interface{}{
			"courses":    len(mapping),
			"categories": len(byLabel),
			"mapping":    byLabel,
			"persisted":  !dryRun,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerMappingGetTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("mapping_get",
		mcp.WithDescription("Get the last persisted course-to-category mapping, ordered by course ID."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		entries, err := st.GetMapping(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetching mapping: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No mapping persisted yet. Run cluster_run first."), nil
		}

		data, _ := json.MarshalIndent(entries, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEnrollTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("enroll_record",
		mcp.WithDescription("Record a user's enrollment in a course. Idempotent: re-recording an existing enrollment is a no-op."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("course_id", mcp.Required(),
			mcp.Description("Course channel ID (numeric string)"),
		),
		mcp.WithString("user_id", mcp.Required(),
			mcp.Description("User ID (numeric string)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		courseID, err := req.RequireString("course_id")
		if err != nil {
			return mcp.NewToolResultError("course_id is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError("user_id is required"), nil
		}

		if err := st.RecordEnrollment(ctx, courseID, userID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("recording enrollment: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Recorded enrollment of user %s in course %s", userID, courseID)), nil
	})
}

func registerUnenrollTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("enroll_remove",
		mcp.WithDescription("Remove a user's enrollment from a course."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("course_id", mcp.Required(),
			mcp.Description("Course channel ID (numeric string)"),
		),
		mcp.WithString("user_id", mcp.Required(),
			mcp.Description("User ID (numeric string)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		courseID, err := req.RequireString("course_id")
		if err != nil {
			return mcp.NewToolResultError("course_id is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError("user_id is required"), nil
		}

		if err := st.RemoveEnrollment(ctx, courseID, userID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("removing enrollment: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Removed enrollment of user %s from course %s", userID, courseID)), nil
	})
}

func registerCourseSetTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("course_set",
		mcp.WithDescription("Register or update a course's metadata. Department enables sparse-pair rescue during clustering."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("course_id", mcp.Required(),
			mcp.Description("Course channel ID (numeric string)"),
		),
		mcp.WithString("department",
			mcp.Description("Department code (e.g. SOCWORK)"),
		),
		mcp.WithString("title",
			mcp.Description("Course title"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		courseID, err := req.RequireString("course_id")
		if err != nil {
			return mcp.NewToolResultError("course_id is required"), nil
		}
		if strings.TrimSpace(courseID) == "" {
			return mcp.NewToolResultError("course_id cannot be empty"), nil
		}

		course := store.Course{CourseID: strings.TrimSpace(courseID)}
		if d, err := req.RequireString("department"); err == nil {
			course.Department = strings.ToUpper(strings.TrimSpace(d))
		}
		if t, err := req.RequireString("title"); err == nil {
			course.Title = strings.TrimSpace(t)
		}

		if err := st.UpsertCourse(ctx, course); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("upserting course: %v", err)), nil
		}

		data, _ := json.MarshalIndent(course, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("stats_get",
		mcp.WithDescription("Get store statistics: tracked courses, enrollments, distinct users, mapped courses, and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerMappingResource(s *server.MCPServer, st *store.SQLiteStore) {
	resource := mcp.NewResource(
		"coursecluster://mapping",
		"Category Mapping",
		mcp.WithResourceDescription("The last persisted course-to-category mapping."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		entries, err := st.GetMapping(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching mapping: %w", err)
		}

		data, _ := json.MarshalIndent(entries, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerStatsResource(s *server.MCPServer, st *store.SQLiteStore) {
	resource := mcp.NewResource(
		"coursecluster://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Tracked courses, enrollments, distinct users, mapped courses, and database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
