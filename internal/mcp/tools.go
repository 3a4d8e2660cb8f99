package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchCoursesTool defines the search_courses MCP tool.
var searchCoursesTool = mcp.NewTool("search_courses",
	mcp.WithDescription("Search university courses semantically. Metadata filters restrict the candidate set before ranking; results are the closest course descriptions to the query."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language description of the courses to find"),
	),
	mcp.WithNumber("k",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
	mcp.WithString("credits",
		mcp.Description("Required credit volume (EAP), e.g. \"6\""),
	),
	mcp.WithString("semester",
		mcp.Description("Teaching semester"),
		mcp.Enum("autumn", "spring"),
	),
	mcp.WithString("language",
		mcp.Description("Teaching language code"),
		mcp.Enum("et", "en"),
	),
	mcp.WithString("level",
		mcp.Description("Study level"),
		mcp.Enum("bachelor", "master", "doctoral"),
	),
)

// listFilterValuesTool defines the list_filter_values MCP tool.
var listFilterValuesTool = mcp.NewTool("list_filter_values",
	mcp.WithDescription("List the distinct values available for each course filter: credits, semesters, languages and study levels."),
)

// getCourseTool defines the get_course MCP tool.
var getCourseTool = mcp.NewTool("get_course",
	mcp.WithDescription("Get the full description text and metadata of one course by its identifier or course code."),
	mcp.WithString("id",
		mcp.Description("Course identifier (UUID)"),
	),
	mcp.WithString("code",
		mcp.Description("Course code, e.g. LTAT.03.001"),
	),
)
