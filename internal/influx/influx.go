// Package influx records exploration progress as InfluxDB time series.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Measurement is the name of the progress series.
const Measurement = "exploration"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Sink writes progress points to InfluxDB, or to a gzip line-protocol backup file when the server
// cannot be reached.
type Sink struct {
	Client     influxdb2.Client
	Writer     influxdb2_api.WriteAPI
	IsValid    bool
	Bucket     string
	Logger     zerolog.Logger
	BackupPath string

	mu           sync.Mutex
	backupFile   *os.File
	backupWriter *gzip.Writer
}

// NewSink creates a sink that falls back to backupPath.
func NewSink(log zerolog.Logger, backupPath string) *Sink {
	return &Sink{
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect creates the client from the influx.* settings and validates it.
func (s *Sink) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}
	s.Bucket = viper.GetString("influx.bucket")

	s.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	running, err := s.Client.Ping(ctx)
	if err != nil || !running {
		s.IsValid = false
		s.Logger.Info().Str("backupPath", s.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		return s.openBackup()
	}

	if err := s.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	s.createWriter()
	s.IsValid = true
	s.Logger.Info().Str("bucket", s.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) openBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(s.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = file
	s.backupWriter = gzip.NewWriter(file)
	return nil
}

func (s *Sink) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := viper.GetString("influx.org")

	org, err := s.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		s.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = s.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			s.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err := s.Client.BucketsAPI().FindBucketByName(ctx, s.Bucket); err != nil {
		s.Logger.Info().Str("bucket", s.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = s.Client.BucketsAPI().CreateBucketWithName(ctx, org, s.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 365,
		})
		if err != nil {
			s.Logger.Error().Err(err).Str("bucket", s.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (s *Sink) createWriter() {
	s.Writer = s.Client.WriteAPI(viper.GetString("influx.org"), s.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.Logger.Error().Err(writeErr).Str("bucket", s.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(s.Writer.Errors())
}

// ProgressPoint builds the point recorded for a status sample.
func ProgressPoint(st core.Status, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"session": st.SessionID},
		map[string]any{
			"xp":             st.XP,
			"level":          st.Level,
			"level_progress": st.LevelProgress,
			"unlocked_tiles": st.UnlockedTiles,
			"coverage":       st.Coverage,
			"visited_pois":   st.VisitedPOIs,
			"path_points":    st.PathPoints,
			"path_metres":    st.PathMetres,
			"achievements":   st.Achievements,
		},
		at,
	)
}

// RecordProgress writes one status sample.
func (s *Sink) RecordProgress(st core.Status) error {
	return s.WritePoint(ProgressPoint(st, time.Now()))
}

// WritePoint writes a point to InfluxDB or the backup file.
func (s *Sink) WritePoint(point *influxdb2_write.Point) error {
	if s.IsValid {
		s.Writer.WritePoint(point)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := s.backupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and closes the client and backup file.
func (s *Sink) Close() error {
	if s.Writer != nil {
		s.Writer.Flush()
	}
	if s.Client != nil {
		s.Client.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupWriter == nil {
		return nil
	}
	err := errors.Join(s.backupWriter.Close(), s.backupFile.Close())
	s.backupWriter = nil
	s.backupFile = nil
	return err
}
