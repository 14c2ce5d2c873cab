package query

import "github.com/mark3labs/mcp-go/mcp"

func findDefinitionsTool() mcp.Tool {
	return mcp.NewTool("find_definitions",
		mcp.WithDescription("Find every definition of a symbol name across the workspace"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact symbol name to look up")),
	)
}

func findReferencesTool() mcp.Tool {
	return mcp.NewTool("find_references",
		mcp.WithDescription("Find all references to the symbol at a file position, following renamed imports"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("File path containing the symbol")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line of the symbol")),
		mcp.WithNumber("character", mcp.Required(), mcp.Description("0-based column of the symbol")),
		mcp.WithBoolean("includeDeclaration", mcp.Description("Prepend matching definitions to the result")),
	)
}

func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Fuzzy-ranked workspace symbol search with CamelCase and acronym matching"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Fuzzy query, e.g. 'CFA' for CompatFieldAdapter")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 50)")),
	)
}

func getFileSymbolsTool() mcp.Tool {
	return mcp.NewTool("get_file_symbols",
		mcp.WithDescription("List the symbols defined in one file"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("File path to list symbols for")),
	)
}

func findDefinitionAtTool() mcp.Tool {
	return mcp.NewTool("find_definition_at",
		mcp.WithDescription("Go to definition for the token at a file position, resolving property chains"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("File path containing the token")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line of the token")),
		mcp.WithNumber("character", mcp.Required(), mcp.Description("0-based column of the token")),
	)
}

func rebuildTool() mcp.Tool {
	return mcp.NewTool("rebuild",
		mcp.WithDescription("Drop the index cache and re-index the whole workspace"),
	)
}

func clearCacheTool() mcp.Tool {
	return mcp.NewTool("clear_cache",
		mcp.WithDescription("Delete every persisted shard and reset the index"),
	)
}

func statsTool() mcp.Tool {
	return mcp.NewTool("stats",
		mcp.WithDescription("Index, parser, and watcher counters"),
	)
}
