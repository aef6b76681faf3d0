package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/occupancy.report/internal/api"
	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/mmwave"
	"github.com/banshee-data/occupancy.report/internal/monitor"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/serialmux"
	"github.com/banshee-data/occupancy.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode, replaying a fixture file instead of a serial port")
	fixturePath = flag.String("fixture", "fixtures.bin", "Frame fixture file replayed in dev mode")
	listen      = flag.String("listen", ":8080", "Listen address")
	dataPort    = flag.String("data-port", "/dev/ttyUSB1", "Serial device for the sensor's binary data stream")
	cliPort     = flag.String("cli-port", "/dev/ttyUSB0", "Serial device for the sensor's command console")
	dbPath      = flag.String("db", "occupancy.db", "Path to the SQLite database")
	configPath  = flag.String("config", "", "Path to a tuning config JSON file")
	chirpPath   = flag.String("chirp", "", "Path to a chirp configuration file to send on startup")
	plotDir     = flag.String("plot-dir", "", "Directory for count history plots (disabled when empty)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("occupancy.report %s\n", version.String())
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	deviceID := tuning.GetDeviceID()

	// Data mux carries the binary frame stream; CLI mux carries the text
	// command console. In dev mode both are mocked and the data mux replays
	// the fixture file on the sensor's frame cadence.
	var dataMux, cliMux serialmux.SerialMuxInterface
	if *devMode {
		fixture, err := os.ReadFile(*fixturePath)
		if err != nil {
			log.Fatalf("failed to open fixture file: %v", err)
		}
		dataMux = serialmux.NewMockSerialMux(fixture)
		cliMux = serialmux.NewMockSerialMux(nil)
	} else {
		var err error
		dataMux, err = serialmux.NewRealSerialMux(*dataPort, serialmux.DataPortOptions())
		if err != nil {
			log.Fatalf("failed to open data port: %v", err)
		}
		cliMux, err = serialmux.NewRealSerialMux(*cliPort, serialmux.CLIPortOptions())
		if err != nil {
			log.Fatalf("failed to open CLI port: %v", err)
		}
	}
	defer dataMux.Close()
	defer cliMux.Close()

	// Send the chirp configuration before frames start flowing. The device
	// params derived from it annotate the /api/params response.
	var params *mmwave.DeviceParams
	chirp := *chirpPath
	if chirp == "" {
		chirp = tuning.GetChirpConfigPath()
	}
	if chirp != "" {
		commands, err := mmwave.ConfigCommands(chirp)
		if err != nil {
			log.Fatalf("failed to read chirp config: %v", err)
		}
		params, err = mmwave.ParseConfigFile(chirp)
		if err != nil {
			log.Fatalf("failed to parse chirp config: %v", err)
		}
		if err := cliMux.Configure(commands); err != nil {
			log.Fatalf("failed to configure sensor: %v", err)
		}
		log.Printf("sent %d chirp config commands to %s", len(commands), *cliPort)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	metrics := monitoring.NewMetrics(deviceID)
	tracker := mmwave.NewOccupancyTrackerWith(tuning.GetBandHalfWidth(), tuning.GetWindowFrames())
	processor := mmwave.NewFrameProcessorWith(tracker)

	frameCache := &monitor.FrameCache{}
	plotter := monitor.NewCountPlotter(deviceID)
	if *plotDir != "" {
		if err := plotter.Start(monitor.MakePlotOutputDir(*plotDir)); err != nil {
			log.Fatalf("failed to start count plotter: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the data serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dataMux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the data stream and feed chunks through the frame
	// processor
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := dataMux.Subscribe()
		defer dataMux.Unsubscribe(id)

		var occupancy monitoring.OccupancySync
		for {
			select {
			case chunk := <-c:
				handleChunk(processor, chunk, database, metrics, &occupancy, frameCache, plotter, deviceID)
			case <-ctx.Done():
				log.Printf("ingest routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		dataMux.AttachAdminRoutes(mux)

		// API handlers send commands to the CLI port, not the data port
		apiMux := api.NewServer(cliMux, database, tuning, params).ServeMux()
		for _, route := range []string{"/api/targets", "/api/counts", "/api/params", "/command"} {
			mux.Handle(route, apiMux)
		}

		monitor.NewWebServer(frameCache, deviceID).RegisterRoutes(mux)
		mux.Handle("/metrics", metrics.Handler())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// Stop the sensor so it does not keep streaming into a closed port.
	if err := cliMux.SendCommand("sensorStop"); err != nil {
		log.Printf("failed to send sensorStop: %v", err)
	}

	if plotter.IsEnabled() {
		plotter.Stop()
		if n, err := plotter.GeneratePlots(); err != nil {
			log.Printf("failed to generate plots: %v", err)
		} else if n > 0 {
			log.Printf("wrote %d plots to %s", n, plotter.GetOutputDir())
		}
	}

	log.Printf("Graceful shutdown complete")
}

// handleChunk pushes one chunk through the processor and drains every frame
// it completes. A single chunk can complete several buffered frames.
func handleChunk(
	processor *mmwave.FrameProcessor,
	chunk []byte,
	database *db.DB,
	metrics *monitoring.Metrics,
	occupancy *monitoring.OccupancySync,
	frameCache *monitor.FrameCache,
	plotter *monitor.CountPlotter,
	deviceID string,
) {
	result := processor.Ingest(chunk)
	for {
		handleResult(processor, result, database, metrics, occupancy, frameCache, plotter, deviceID)
		if result.Status != mmwave.StatusFrame {
			return
		}
		result = processor.Ingest(nil)
	}
}

func handleResult(
	processor *mmwave.FrameProcessor,
	result mmwave.Result,
	database *db.DB,
	metrics *monitoring.Metrics,
	occupancy *monitoring.OccupancySync,
	frameCache *monitor.FrameCache,
	plotter *monitor.CountPlotter,
	deviceID string,
) {
	if result.MalformedTLVs > 0 {
		metrics.MalformedRecords.Add(float64(result.MalformedTLVs))
	}

	switch result.Status {
	case mmwave.StatusNoData:
		return
	case mmwave.StatusBufferOverflow:
		metrics.BufferOverflows.Inc()
		return
	case mmwave.StatusTruncated:
		metrics.TruncatedFrames.Inc()
		metrics.BytesDropped.Add(float64(result.DroppedBytes))
		return
	case mmwave.StatusFrame:
	}

	frame := result.Frame
	metrics.FramesDecoded.Inc()
	metrics.TrackedTargets.Set(float64(len(frame.Targets)))
	frameCache.Update(frame)

	entered, exited := processor.Tracker().Counts()
	occupancy.Publish(metrics, entered, exited)
	plotter.Sample(frame.Header.FrameNumber, len(frame.Targets), entered, exited)

	timestamp := float64(frame.Header.Timestamp)
	observations := make([]db.TargetObservation, 0, len(frame.Targets))
	for _, target := range frame.Targets {
		observations = append(observations, db.TargetObservation{
			FrameNumber: frame.Header.FrameNumber,
			Timestamp:   timestamp,
			DeviceID:    deviceID,
			TargetID:    target.ID,
			PosX:        float64(target.PosX),
			PosY:        float64(target.PosY),
			VelX:        float64(target.VelX),
			VelY:        float64(target.VelY),
		})
	}
	snapshot := db.OccupancySnapshot{
		FrameNumber:  frame.Header.FrameNumber,
		Timestamp:    timestamp,
		DeviceID:     deviceID,
		TargetCount:  len(frame.Targets),
		EnteredCount: entered,
		ExitedCount:  exited,
	}
	if err := database.RecordTargetFrame(observations, snapshot); err != nil {
		log.Printf("failed to record frame %d: %v", frame.Header.FrameNumber, err)
	}
}
