package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/service/common"
)

// logRequests logs every bridge call with its caller, outcome and duration.
func logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	started := time.Now()

	actor, ok := common.ActorFromIncoming(ctx)
	if !ok {
		actor = "unknown"
	}

	ctx = logger.WithKV(ctx, "method", info.FullMethod, "actor", actor)

	resp, err := handler(ctx, req)

	if err != nil {
		logger.WarnKV(ctx, "Bridge call failed", "code", status.Code(err).String(), "error", err, "took", time.Since(started))
	} else {
		logger.DebugKV(ctx, "Bridge call served", "took", time.Since(started))
	}

	return resp, err
}
