package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"codexvault/internal/scheduler"
	"codexvault/internal/store"
)

type Server struct {
	db    store.Store
	sched *scheduler.Scheduler
	mcp   *sdk.Server
}

func NewServer(db store.Store, sched *scheduler.Scheduler, version string) *Server {
	s := &Server{
		db:    db,
		sched: sched,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "codexvault",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
