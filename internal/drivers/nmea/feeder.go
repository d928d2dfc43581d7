package nmea

import (
	"context"
	"math"

	"github.com/banshee-data/pose.report/internal/estimation/models"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/units"
)

// Feeder turns parsed sentences into channel updates. The first valid fix
// becomes the origin of the local east/north plane; later fixes are projected
// relative to it. Nothing here touches the estimator beyond the channels'
// producer-safe Add path.
type Feeder struct {
	gps    *models.GPSChannel    // required
	height *models.HeightChannel // optional; fed from GGA altitude

	originLat float64 // radians
	originLon float64 // radians
	originSet bool

	satellites int // last GGA satellite count, attached to position updates
}

// NewFeeder returns a feeder producing into the given channels. height may
// be nil when no altitude channel is wired.
func NewFeeder(gps *models.GPSChannel, height *models.HeightChannel) *Feeder {
	return &Feeder{gps: gps, height: height}
}

// HandleSentence parses one sentence and enqueues the resulting updates.
// Unhandled sentence types are ignored; parse failures are returned for the
// caller to count or log.
func (f *Feeder) HandleSentence(line string) error {
	parsed, err := ParseSentence(line)
	if err != nil {
		return err
	}
	switch s := parsed.(type) {
	case *GGA:
		if s.FixQuality == 0 {
			return nil
		}
		f.satellites = s.Satellites
		if f.height != nil {
			f.height.AddUpdate(models.HeightUpdate{Height: s.Altitude})
		}
	case *RMC:
		if !s.Valid {
			return nil
		}
		x, y := f.project(s.Lat, s.Lon)
		f.gps.AddUpdate(models.GPSUpdate{
			X:          x,
			Y:          y,
			VX:         s.SpeedMPS * math.Sin(s.CourseRad),
			VY:         s.SpeedMPS * math.Cos(s.CourseRad),
			Satellites: f.satellites,
		})
	}
	return nil
}

// project maps a geodetic coordinate onto the local east/north plane using an
// equirectangular approximation around the origin fix. Good to centimetres
// over the few kilometres an estimator run covers.
func (f *Feeder) project(latDeg, lonDeg float64) (x, y float64) {
	lat := units.DegToRad(latDeg)
	lon := units.DegToRad(lonDeg)
	if !f.originSet {
		f.originLat = lat
		f.originLon = lon
		f.originSet = true
	}
	x = units.EarthRadiusMeters * (lon - f.originLon) * math.Cos(f.originLat)
	y = units.EarthRadiusMeters * (lat - f.originLat)
	return x, y
}

// Run consumes sentences from port until its event channel closes or ctx is
// cancelled. Parse failures are logged and skipped; a garbled sentence must
// not take the driver down.
func (f *Feeder) Run(ctx context.Context, port PortInterface) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-port.Events():
			if !ok {
				return nil
			}
			if err := f.HandleSentence(line); err != nil {
				monitoring.Logf("nmea: %v", err)
			}
		}
	}
}
