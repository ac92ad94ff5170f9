package grpc

import (
	"context"
	"time"

	"github.com/vogiaan1904/vcping/internal/dispatch"
	"github.com/vogiaan1904/vcping/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DispatcherService is the health-check service name that tracks the
// dispatcher. The empty name reports the process as a whole.
const DispatcherService = "vcping.Dispatcher"

type StatusSource interface {
	GetStatus() dispatch.Status
}

type HealthService struct {
	srv *health.Server
	src StatusSource
	l   logger.Logger
}

func NewHealthService(src StatusSource, l logger.Logger) *HealthService {
	return &HealthService{
		srv: health.NewServer(),
		src: src,
		l:   l,
	}
}

func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh publishes the dispatcher's current state.
func (h *HealthService) Refresh(ctx context.Context) {
	st := h.src.GetStatus()

	status := healthpb.HealthCheckResponse_SERVING
	if !st.IsRunning {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(DispatcherService, status)

	h.l.Debugf(ctx, "Health %s: lanes=%d pending=%d events=%d activations=%d deactivations=%d aborted=%d",
		status, st.Lanes, st.PendingConfirmations, st.EventsHandled, st.Activations, st.Deactivations, st.AbortedActivations)
}

// Run refreshes the health status every interval until ctx is done.
func (h *HealthService) Run(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING on every service and ignores later updates.
func (h *HealthService) Shutdown() {
	h.srv.Shutdown()
}
