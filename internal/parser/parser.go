// Package parser converts the []string arguments of input commands into typed values.
package parser

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adventurelime/explorer/internal/geo"
	"github.com/adventurelime/explorer/pkg/core"
)

// Line is a split input line: the command name and its '|'-separated arguments.
type Line struct {
	Command string
	Args    []string
}

// Parser provides pure []string -> core struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, now: time.Now}
}

// SplitLine splits ":FIX:|43.66|-79.39" into its command and arguments.
// Surrounding whitespace is trimmed from every part; quotes around arguments are removed.
func SplitLine(line string) (Line, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Line{}, false
	}
	parts := strings.Split(line, "|")
	out := Line{Command: strings.ToUpper(strings.TrimSpace(parts[0]))}
	for _, p := range parts[1:] {
		out.Args = append(out.Args, trimQuotes(strings.TrimSpace(p)))
	}
	return out, out.Command != ""
}

// ParseFix parses [lat, lon, accuracy?, unixSeconds?]. The point may also be given as one "lat,lon"
// argument. A missing timestamp takes the current time; a missing accuracy is zero.
func (p *Parser) ParseFix(args []string) (core.Fix, error) {
	point, rest, err := parsePoint(args)
	if err != nil {
		return core.Fix{}, err
	}
	fix := core.Fix{Point: point, Timestamp: p.now()}

	if len(rest) > 0 && rest[0] != "" {
		acc, err := strconv.ParseFloat(rest[0], 64)
		if err != nil || acc < 0 || math.IsNaN(acc) {
			return core.Fix{}, fmt.Errorf("error parsing accuracy %q", rest[0])
		}
		fix.Accuracy = acc
	}
	if len(rest) > 1 && rest[1] != "" {
		secs, err := parseIntFromFloat(rest[1])
		if err != nil {
			return core.Fix{}, fmt.Errorf("error parsing timestamp %q: %w", rest[1], err)
		}
		fix.Timestamp = time.Unix(secs, 0).UTC()
	}
	return fix, nil
}

// parsePoint consumes the coordinate arguments and returns the remainder.
func parsePoint(args []string) (core.GeoPoint, []string, error) {
	if len(args) > 0 && strings.Contains(args[0], ",") {
		pt, err := geo.ParseCoordinate(args[0])
		return pt, args[1:], err
	}
	if len(args) < 2 {
		return core.GeoPoint{}, nil, fmt.Errorf("fix needs at least 2 args (lat, lon), got %d", len(args))
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return core.GeoPoint{}, nil, fmt.Errorf("error parsing latitude %q: %w", args[0], err)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return core.GeoPoint{}, nil, fmt.Errorf("error parsing longitude %q: %w", args[1], err)
	}
	pt, err := geo.ValidatePoint(core.GeoPoint{Lat: lat, Lon: lon})
	return pt, args[2:], err
}

// ParseToken parses the monotonically increasing token of a clear command.
func (p *Parser) ParseToken(args []string) (uint64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("clear needs a token")
	}
	token, err := parseUintFromFloat(args[0])
	if err != nil {
		return 0, fmt.Errorf("error parsing token: %w", err)
	}
	return token, nil
}

// ParseID returns the first argument as an identifier.
func (p *Parser) ParseID(args []string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("missing id")
	}
	return args[0], nil
}

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f >= float64(math.MaxUint64) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
