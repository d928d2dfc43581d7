package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/drivers/nmea"
	"github.com/banshee-data/pose.report/internal/estimation"
	"github.com/banshee-data/pose.report/internal/estimation/kalman"
	"github.com/banshee-data/pose.report/internal/estimation/models"
	"github.com/banshee-data/pose.report/internal/eventlog"
	"github.com/banshee-data/pose.report/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to tuning config JSON")
	eventLog   = flag.String("eventlog", "", "Path to sqlite event log (overrides config)")
	serialPort = flag.String("serial", "", "Serial port with an NMEA GPS; synthetic sensors when empty")
	baudRate   = flag.Int("baud", 9600, "Serial baud rate")
)

func main() {
	flag.Parse()

	log.Printf("pose.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	est := estimation.New(kalman.New(), nil)

	gps := models.NewGPSChannel("gps")
	baro := models.NewHeightChannel("baro")
	mag := models.NewMagneticChannel("mag")

	// defaults; the config may override any of these
	gps.SetTimeout(2.0)
	baro.SetMinInterval(0.05)
	baro.SetTimeout(1.0)
	mag.SetMinInterval(0.05)

	for _, m := range []estimation.Measurement{gps, baro, mag} {
		if err := est.AddMeasurement(m); err != nil {
			log.Fatalf("failed to register channel: %v", err)
		}
	}
	if err := est.Configure(cfg); err != nil {
		log.Fatalf("failed to apply config: %v", err)
	}

	if path := eventLogPath(cfg); path != "" {
		db, err := eventlog.NewDB(path)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer db.Close()
		est.SetRecorder(eventlog.NewRecorder(db))
		log.Printf("recording measurement events to %s", path)
	}

	if err := est.Init(); err != nil {
		log.Fatalf("failed to initialize estimator: %v", err)
	}
	defer est.Cleanup()

	// roll/pitch assumed held by the IMU; this arms the magnetic channel
	est.SetStatusFlags(estimation.StatusRollPitch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serialPort != "" {
		port, err := nmea.NewPort(*serialPort, *baudRate)
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", *serialPort, err)
		}
		defer port.Close()
		go func() {
			if err := port.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial monitor stopped: %v", err)
			}
		}()
		go func() {
			if err := nmea.NewFeeder(gps, baro).Run(ctx, port); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("nmea feeder stopped: %v", err)
			}
		}()
		log.Printf("reading NMEA sentences from %s at %d baud", *serialPort, *baudRate)
	} else {
		go syntheticProducers(ctx, gps, baro, mag)
		log.Printf("no serial port given; producing synthetic sensor data")
	}

	period := cfg.GetUpdatePeriod()
	log.Printf("starting estimator, tick period %s", period)
	if err := est.Run(ctx, period); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("estimator stopped: %v", err)
	}

	x := est.State().Vector()
	log.Printf("final estimate: pos=(%.1f, %.1f, %.1f) m, heading=%.1f deg, status=[%s]",
		x.AtVec(estimation.StateX), x.AtVec(estimation.StateY), x.AtVec(estimation.StateZ),
		x.AtVec(estimation.StateYaw)*180/math.Pi, est.Status())
}

func eventLogPath(cfg *config.TuningConfig) string {
	if *eventLog != "" {
		return *eventLog
	}
	return cfg.GetEventLogPath()
}

// syntheticProducers feeds the channels a slow circular track so the
// estimator has something to chew on without hardware attached.
func syntheticProducers(ctx context.Context, gps *models.GPSChannel, baro *models.HeightChannel, mag *models.MagneticChannel) {
	const (
		radius = 100.0 // m
		omega  = 0.05  // rad/s
	)
	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			angle := omega * t
			gps.AddUpdate(models.GPSUpdate{
				X:          radius * math.Cos(angle),
				Y:          radius * math.Sin(angle),
				VX:         -radius * omega * math.Sin(angle),
				VY:         radius * omega * math.Cos(angle),
				Satellites: 8,
			})
			baro.AddUpdate(models.HeightUpdate{Height: 50 + 5*math.Sin(0.1*t)})
			mag.AddUpdate(models.HeadingUpdate{Heading: angle + math.Pi/2})
		}
	}
}
