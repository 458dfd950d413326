// Command testdata serves synthetic scancap metrics so Grafana dashboards
// can be built without running real capture sessions.
//
// Every tick it pushes a made-up recording through the real quality gate
// and reports the result, along with session outcomes and artifact sizes,
// to the same Prometheus collectors the daemon uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/metrics"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

var resolutions = []capture.Metadata{
	{Width: 1920, Height: 1080},
	{Width: 3840, Height: 2160},
	{Width: 1280, Height: 720},
	{Width: 854, Height: 480},
	{Width: 1080, Height: 1920}, // portrait
}

var outcomes = []orchestrator.Phase{
	orchestrator.PhaseCompleted,
	orchestrator.PhaseCompleted,
	orchestrator.PhaseCompleted,
	orchestrator.PhaseAbandoned,
	orchestrator.PhaseFailed,
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9190"
	}

	m := metrics.New()
	g := gate.NewDefault()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for i := 0; i < 50; i++ {
		simulateCheck(ctx, m, g)
	}
	go generate(ctx, m, g)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'scancap-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func generate(ctx context.Context, m *metrics.Metrics, g *gate.Gate) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			simulateCheck(ctx, m, g)
			if rand.Float64() > 0.6 {
				simulateSession(ctx, m)
			}
		}
	}
}

// simulateCheck grades one fake recording.
func simulateCheck(ctx context.Context, m *metrics.Metrics, g *gate.Gate) {
	angle := capture.AllAngles()[rand.Intn(capture.AngleCount)]
	md := resolutions[rand.Intn(len(resolutions))]
	md.Duration = time.Duration(3+rand.Intn(25)) * time.Second

	// A few recordings come back nearly empty.
	size := 2<<20 + rand.Intn(6<<20)
	if rand.Float64() > 0.95 {
		size = rand.Intn(64 << 10)
	}

	seg, err := capture.NewSegment(angle, capture.MediaTypeMP4, make([]byte, size), md)
	if err != nil {
		log.Printf("skip sample: %v", err)
		return
	}
	m.SegmentChecked(ctx, angle, g.Check(seg, gate.DefaultMinDuration))
}

func simulateSession(ctx context.Context, m *metrics.Metrics) {
	phase := outcomes[rand.Intn(len(outcomes))]
	if phase == orchestrator.PhaseCompleted {
		m.ArtifactAssembled(ctx, int64(capture.AngleCount*(4<<20+rand.Intn(20<<20))))
	}
	m.SessionEnded(ctx, phase)
}
