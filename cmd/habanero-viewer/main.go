// Habanero Viewer
// Live moisture charts and watering commands for Habanero sensors
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/agsys/habanero-viewer/internal/engine"
	"github.com/agsys/habanero-viewer/internal/feed"
	"github.com/agsys/habanero-viewer/internal/poller"
	"github.com/agsys/habanero-viewer/internal/sensorpb"
	"github.com/agsys/habanero-viewer/internal/simulator"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

const version = "v0.1.0"

var (
	configFile string
	envFile    string
	watchMode  string
	waterSecs  int

	rootCmd = &cobra.Command{
		Use:   "habanero-viewer",
		Short: "Habanero moisture viewer",
		Long:  "Polls the Habanero sensor service for moisture readings, streams live charts and sends watering commands.",
	}

	sensorsCmd = &cobra.Command{
		Use:   "sensors",
		Short: "List known sensors",
		Args:  cobra.NoArgs,
		RunE:  runSensors,
	}

	watchCmd = &cobra.Command{
		Use:   "watch <sensor>",
		Short: "Print the live series of a sensor",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	waterCmd = &cobra.Command{
		Use:   "water <sensor>",
		Short: "Activate watering for a sensor",
		Args:  cobra.ExactArgs(1),
		RunE:  runWater,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the live feed for renderers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated sensor service",
		Args:  cobra.NoArgs,
		RunE:  runSimulate,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Habanero Viewer %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "habanero-viewer.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file with HABANERO_* overrides")

	watchCmd.Flags().StringVar(&watchMode, "mode", "aggregated", "Display mode (aggregated or individual)")
	waterCmd.Flags().IntVar(&waterSecs, "seconds", telemetry.DefaultWateringSeconds, "Watering duration in seconds (0-60)")

	rootCmd.AddCommand(sensorsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and the environment overrides, and redirects
// logging if a log file is configured
func setup(cmd *cobra.Command) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(configFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	return cfg, nil
}

func newEngine(cmd *cobra.Command) (*Config, *engine.Engine, error) {
	cfg, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(cfg.engineConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return cfg, eng, nil
}

func runSensors(cmd *cobra.Command, args []string) error {
	_, eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	sensors, err := eng.Sensors(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIDENTIFIER\tTYPE\tLOCATION")
	for _, s := range sensors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Identifier, s.Type, s.Location)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	mode, err := telemetry.ParseDisplayMode(watchMode)
	if err != nil {
		return err
	}

	_, eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	sensor, err := eng.FindSensor(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	view := eng.NewView()
	defer view.Close()

	// Subscribers run under the controller lock, so printing happens here
	updates := make(chan poller.Update, 8)
	unsubscribe := view.Controller.Subscribe(func(u poller.Update) {
		select {
		case updates <- u:
		default:
		}
	})
	defer unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	view.Selection.SetMode(mode)
	view.Selection.Select(sensor)
	log.Printf("Watching sensor %s in %s mode, press Ctrl-C to stop", sensor.Label(), mode)

	for {
		select {
		case sig := <-sigChan:
			stats := view.Controller.Stats()
			log.Printf("Received signal %v after %d updates (%d failed polls)", sig, stats.Published, stats.Failures)
			return nil
		case u := <-updates:
			printUpdate(os.Stdout, u)
		}
	}
}

func printUpdate(out io.Writer, u poller.Update) {
	fmt.Fprintf(out, "\n%s  %s  %s mode  %d points\n", u.At.Format(time.TimeOnly), u.Sensor.Label(), u.Mode, len(u.Points))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TIME\tMOISTURE\t")
	for _, p := range u.Points {
		fmt.Fprintf(w, "%s\t%.2f\t\n", p.Label, p.Value)
	}
	w.Flush()
}

func runWater(cmd *cobra.Command, args []string) error {
	_, eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	sensor, err := eng.FindSensor(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if err := eng.Activate(cmd.Context(), sensor.ID, waterSecs); err != nil {
		return err
	}
	fmt.Printf("Watering %s for %ds\n", sensor.Label(), waterSecs)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, eng, err := newEngine(cmd)
	if err != nil {
		return err
	}

	srv := feed.New(cfg.feedConfig(), eng)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-errChan:
		eng.Close()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if err := eng.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	addr := cfg.simulatorAddr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	sim := simulator.New(cfg.simulatorConfig())
	grpcServer := grpc.NewServer(sensorpb.ServerOption())
	sensorpb.RegisterSensorServiceServer(grpcServer, sim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Serve(lis)
	}()
	log.Printf("Simulated sensor service listening on %s", lis.Addr())
	for _, id := range sim.SensorIDs() {
		log.Printf("Sensor %s", id)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-errChan:
		sim.Stop()
		return fmt.Errorf("failed to serve: %w", err)
	}

	grpcServer.GracefulStop()
	sim.Stop()

	log.Println("Shutdown complete")
	return nil
}
