package app

import (
	"strings"

	"github.com/charlesng35/teamspace/internal/avatar"
	"github.com/charlesng35/teamspace/internal/database"
	"github.com/charlesng35/teamspace/internal/jobs"
	"github.com/charlesng35/teamspace/internal/storage"
)

// DatabaseOpenConfig converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) DatabaseOpenConfig() database.Config {
	return database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
		Options:  c.Options,
	}
}

// ResolverConfig converts AvatarConfig into avatar.Resolver parameters.
func (c AvatarConfig) ResolverConfig() avatar.Config {
	return avatar.Config{
		LogoBaseURL:     c.LogoBaseURL,
		FallbackBaseURL: c.FallbackBaseURL,
		ProbeTimeout:    c.ProbeTimeout,
		CacheTTL:        c.CacheTTL,
	}
}

// S3Config converts the S3 settings into storage.S3Config.
func (c StorageConfig) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          strings.TrimSpace(c.S3.Bucket),
		Region:          c.S3.Region,
		Endpoint:        c.S3.Endpoint,
		PublicURL:       c.S3.PublicURL,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		UsePathStyle:    c.S3.UsePathStyle,
		PublicRead:      c.S3.PublicRead,
	}
}

// QueueConfig converts JobsConfig into jobs.Config.
func (c JobsConfig) QueueConfig() jobs.Config {
	return jobs.Config{
		Workers:     c.Workers,
		QueueSize:   c.QueueSize,
		TaskTimeout: c.TaskTimeout,
	}
}
