// driversim plays a driver: it joins a trip and streams samples along a
// straight line between two points, optionally dropping GPS now and then.
//
// Usage:
//
//	driversim --server ws://localhost:8080/ws --token abc123 --from 28.61,77.20 --to 28.62,77.21
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/trackclient"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server   string
		link     string
		token    string
		access   string
		from, to string
		steps    int
		interval time.Duration
		speed    float64
		gpsGap   int
		logLevel string
	)

	flagSet := pflag.NewFlagSet("driversim", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "ws://localhost:8080/ws", "websocket endpoint")
	flagSet.StringVar(&link, "link", "", "driver tracking link; supplies --token and --access")
	flagSet.StringVar(&token, "token", "", "trip token")
	flagSet.StringVar(&access, "access", "", "signed link token, when the server enforces links")
	flagSet.StringVar(&from, "from", "", "start position as lat,lng")
	flagSet.StringVar(&to, "to", "", "end position as lat,lng")
	flagSet.IntVar(&steps, "steps", 30, "samples between start and end")
	flagSet.DurationVar(&interval, "interval", 2*time.Second, "time between samples")
	flagSet.Float64Var(&speed, "speed", 30, "reported speed in km/h")
	flagSet.IntVar(&gpsGap, "gps-off-every", 0, "send a GPS OFF sample every N samples (0 disables)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if link != "" {
		parsed, err := trackclient.ParseLink(link)
		if err != nil {
			return err
		}
		if parsed.Role != "" && parsed.Role != models.RoleDriver {
			return fmt.Errorf("link is for role %q, not driver", parsed.Role)
		}
		token, access = parsed.Token, parsed.Access
	}
	if token == "" {
		return errors.New("--token or --link is required")
	}
	start, err := parsePoint(from)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	end, err := parsePoint(to)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if steps < 1 {
		steps = 1
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(logLevel),
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples := make(chan models.LocationSample)
	go produce(ctx, samples, start, end, steps, interval, speed, gpsGap)

	driver := trackclient.NewDriver(trackclient.Config{
		ServerURL: server,
		Token:     token,
		Access:    access,
		Logger:    log,
	})
	err = driver.Run(ctx, samples, func(e trackclient.Event) {
		switch e.Kind {
		case trackclient.EventJoined:
			log.WithTripToken(token).Info("Joined trip")
		case trackclient.EventStarted:
			log.WithTripToken(token).Info("Passenger verified the start code")
		case trackclient.EventCompleted:
			log.WithTripToken(token).Info("Trip completed")
		case trackclient.EventServerError:
			log.WithTripToken(token).WithError(e.Err).Warn("Sample rejected")
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// produce emits steps+1 samples from start to end, then closes out.
func produce(ctx context.Context, out chan<- models.LocationSample, start, end utils.Point, steps int, interval time.Duration, speed float64, gpsGap int) {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i <= steps; i++ {
		p := utils.Interpolate(start, end, float64(i)/float64(steps))
		sample := models.LocationSample{Lat: p.Lat, Lng: p.Lng, SpeedKmh: speed, GPSStatus: models.GPSStatusOn}
		if gpsGap > 0 && i > 0 && i%gpsGap == 0 {
			sample = models.LocationSample{GPSStatus: models.GPSStatusOff}
		}

		select {
		case out <- sample:
		case <-ctx.Done():
			return
		}
		if i == steps {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func parsePoint(s string) (utils.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return utils.Point{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return utils.Point{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return utils.Point{}, err
	}
	if !utils.IsValidCoordinates(lat, lng) {
		return utils.Point{}, fmt.Errorf("coordinates out of range: %q", s)
	}
	return utils.Point{Lat: lat, Lng: lng}, nil
}
