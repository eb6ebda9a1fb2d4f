// Command zscore-mcp runs the z-score anomaly detection MCP server over
// stdio, a reference tool server a project's mcp_servers config can
// point at.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/llamafarm/llamafarm-core/pkg/mcpserver/zscore"
)

func main() {
	s := zscore.NewServer()
	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}
