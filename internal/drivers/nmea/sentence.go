package nmea

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pose.report/internal/units"
)

// RMC is a recommended-minimum position/velocity sentence.
type RMC struct {
	Valid     bool    // receiver reports the fix as valid
	Lat, Lon  float64 // decimal degrees, north/east positive
	SpeedMPS  float64 // speed over ground (m/s)
	CourseRad float64 // course over ground, radians from north
}

// GGA is a fix-data sentence.
type GGA struct {
	FixQuality int     // 0 = no fix
	Lat, Lon   float64 // decimal degrees, north/east positive
	Satellites int
	Altitude   float64 // antenna altitude above mean sea level (m)
}

// ParseSentence parses one NMEA sentence. It returns *RMC or *GGA for the
// sentence types the driver consumes, (nil, nil) for other well-formed
// sentences, and an error for malformed input (bad framing or checksum).
func ParseSentence(line string) (any, error) {
	line = strings.TrimSpace(line)
	if len(line) < 9 || line[0] != '$' {
		return nil, fmt.Errorf("bad sentence framing: %q", line)
	}

	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 != len(line) {
		return nil, fmt.Errorf("missing checksum: %q", line)
	}
	body := line[1:star]
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("bad checksum field: %q", line)
	}
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	if sum != byte(want) {
		return nil, fmt.Errorf("checksum mismatch (%02X != %02X): %q", sum, want, line)
	}

	fields := strings.Split(body, ",")
	talker := fields[0]
	if len(talker) < 5 {
		return nil, fmt.Errorf("bad talker field: %q", line)
	}
	switch talker[2:] {
	case "RMC":
		return parseRMC(fields)
	case "GGA":
		return parseGGA(fields)
	}
	return nil, nil
}

func parseRMC(fields []string) (*RMC, error) {
	// $xxRMC,time,status,lat,N,lon,E,speed,course,date,...
	if len(fields) < 10 {
		return nil, fmt.Errorf("RMC sentence too short: %d fields", len(fields))
	}
	rmc := &RMC{Valid: fields[2] == "A"}
	if !rmc.Valid {
		return rmc, nil
	}

	var err error
	if rmc.Lat, err = parseCoordinate(fields[3], fields[4]); err != nil {
		return nil, fmt.Errorf("RMC latitude: %w", err)
	}
	if rmc.Lon, err = parseCoordinate(fields[5], fields[6]); err != nil {
		return nil, fmt.Errorf("RMC longitude: %w", err)
	}
	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("RMC speed: %w", err)
		}
		rmc.SpeedMPS = units.KnotsToMPS(knots)
	}
	if fields[8] != "" {
		course, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return nil, fmt.Errorf("RMC course: %w", err)
		}
		rmc.CourseRad = units.DegToRad(course)
	}
	return rmc, nil
}

func parseGGA(fields []string) (*GGA, error) {
	// $xxGGA,time,lat,N,lon,E,quality,sats,hdop,alt,M,...
	if len(fields) < 11 {
		return nil, fmt.Errorf("GGA sentence too short: %d fields", len(fields))
	}
	gga := &GGA{}

	var err error
	if fields[6] != "" {
		if gga.FixQuality, err = strconv.Atoi(fields[6]); err != nil {
			return nil, fmt.Errorf("GGA fix quality: %w", err)
		}
	}
	if gga.FixQuality == 0 {
		return gga, nil
	}
	if gga.Lat, err = parseCoordinate(fields[2], fields[3]); err != nil {
		return nil, fmt.Errorf("GGA latitude: %w", err)
	}
	if gga.Lon, err = parseCoordinate(fields[4], fields[5]); err != nil {
		return nil, fmt.Errorf("GGA longitude: %w", err)
	}
	if fields[7] != "" {
		if gga.Satellites, err = strconv.Atoi(fields[7]); err != nil {
			return nil, fmt.Errorf("GGA satellites: %w", err)
		}
	}
	if fields[9] != "" {
		if gga.Altitude, err = strconv.ParseFloat(fields[9], 64); err != nil {
			return nil, fmt.Errorf("GGA altitude: %w", err)
		}
	}
	return gga, nil
}

// parseCoordinate converts an NMEA ddmm.mmmm coordinate with its hemisphere
// letter to signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	degrees := float64(int(raw / 100))
	minutes := raw - degrees*100
	deg := degrees + minutes/60

	switch hemisphere {
	case "N", "E":
		return deg, nil
	case "S", "W":
		return -deg, nil
	}
	return 0, fmt.Errorf("bad hemisphere %q", hemisphere)
}
