package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitsched/orbit/pkg/actions"
	"github.com/orbitsched/orbit/pkg/actor"
	"github.com/orbitsched/orbit/pkg/broker"
	"github.com/orbitsched/orbit/pkg/cluster"
	"github.com/orbitsched/orbit/pkg/deploy"
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/facade"
	"github.com/orbitsched/orbit/pkg/health"
	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/metrics"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduling core: cluster participation, the actor, and its gRPC/metrics endpoints",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("node-id", "node-1", "This node's raft server id")
	flags.String("bind-addr", "127.0.0.1:9094", "Address this node's raft transport binds")
	flags.String("data-dir", "./data", "Directory for raft logs/snapshots and the replicated store")
	flags.Bool("bootstrap", true, "Bootstrap a new single-node raft cluster (false to join an existing one)")
	flags.String("facade-addr", "127.0.0.1:8090", "Address the facade gRPC command service listens on")
	flags.String("metrics-addr", "127.0.0.1:9090", "Address the Prometheus metrics endpoint listens on")
	flags.String("containerd-socket", broker.DefaultSocketPath, "containerd socket the reference broker dials")
	flags.Duration("cancellation-timeout", deploy.DefaultCancellationTimeout, "How long a force-deploy waits for a conflicting deployment to cancel")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	nodeID, _ := flags.GetString("node-id")
	bindAddr, _ := flags.GetString("bind-addr")
	dataDir, _ := flags.GetString("data-dir")
	bootstrap, _ := flags.GetBool("bootstrap")
	facadeAddr, _ := flags.GetString("facade-addr")
	metricsAddr, _ := flags.GetString("metrics-addr")
	containerdSocket, _ := flags.GetString("containerd-socket")
	cancellationTimeout, _ := flags.GetDuration("cancellation-timeout")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("orbit: create data dir: %w", err)
	}

	localStore, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("orbit: open store: %w", err)
	}

	clst := cluster.New(cluster.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir}, localStore)
	if bootstrap {
		if err := clst.Bootstrap(); err != nil {
			return fmt.Errorf("orbit: bootstrap cluster: %w", err)
		}
	} else {
		if err := clst.Join(); err != nil {
			return fmt.Errorf("orbit: join cluster: %w", err)
		}
	}
	defer clst.Shutdown()

	replicated := cluster.NewReplicatedStore(clst)
	repo := repository.New(replicated)
	plans := repository.NewPlanStore(replicated)
	trk := tracker.New()
	broadcastBroker := events.NewBroker()
	broadcastBroker.Start()
	defer broadcastBroker.Stop()

	containerRuntime, err := broker.NewContainerdRuntime(containerdSocket)
	if err != nil {
		return fmt.Errorf("orbit: connect to containerd: %w", err)
	}
	driver := broker.NewDriver(containerRuntime, trk)
	driver.Start()
	defer driver.Stop()

	queue := broker.NewQueue()
	killer := broker.NewKiller(driver, trk)
	matcher := broker.NewMatcher(queue, repo, trk, driver)
	matcher.Start()
	defer matcher.Stop()

	healthMgr := health.NewManager(killer, broadcastBroker)

	sa := &actions.Actions{
		Killer: killer,
		Queue:  queue,
		Health: healthMgr,
		Broker: broadcastBroker,
	}

	deployMgr := deploy.NewManager(newOrbitExecutor(repo, trk, sa), broadcastBroker, cancellationTimeout)

	sched := actor.New(actor.Config{
		Repo:                repo,
		Tracker:             trk,
		Actions:             sa,
		DeployMgr:           deployMgr,
		Broker:              broadcastBroker,
		Driver:              driver,
		Plans:               plans,
		LeadershipChanges:   clst.LeadershipChanges(),
		CancellationTimeout: cancellationTimeout,
	})
	sched.Start()
	defer sched.Stop()

	facadeServer := facade.NewServer(sched)
	facadeErrCh := make(chan error, 1)
	go func() {
		if err := facadeServer.ListenAndServe(facadeAddr); err != nil {
			facadeErrCh <- fmt.Errorf("facade server: %w", err)
		}
	}()
	defer facadeServer.Stop()

	go serveMetrics(metricsAddr, clst)

	log.Logger.Info().
		Str("node_id", nodeID).
		Str("facade_addr", facadeAddr).
		Str("metrics_addr", metricsAddr).
		Msg("orbit: serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("orbit: received shutdown signal")
	case err := <-facadeErrCh:
		return err
	}
	return nil
}

// serveMetrics exposes /metrics and a liveness-only /healthz, refreshing
// the two cluster gauges from clst every 5 seconds; nothing else in the
// binary sets them.
func serveMetrics(addr string, clst *cluster.Cluster) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if clst.IsLeader() {
				metrics.ClusterIsLeader.Set(1)
			} else {
				metrics.ClusterIsLeader.Set(0)
			}
			metrics.ClusterRaftAppliedIndex.Set(float64(clst.AppliedIndex()))
		}
	}()

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Error().Err(err).Msg("orbit: metrics server stopped")
	}
}
