package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

type Server struct {
	API     Api     `yaml:"api"`
	Storage Storage `yaml:"storage"`
	Pool    Pool    `yaml:"pool"`
	Scanner Scanner `yaml:"scanner"`
	Log     Log     `yaml:"log"`
}

type Api struct {
	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR"`
	MaxMemory int64  `yaml:"max_memory" env:"HTTP_MAX_MEMORY"`
}

type Storage struct {
	Backend   string `yaml:"backend" env:"STORAGE_BACKEND"`
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	Capacity  int64  `yaml:"capacity" env:"STORAGE_CAPACITY"`
	S3        S3     `yaml:"s3"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region    string `yaml:"region" env:"S3_REGION"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
}

type Pool struct {
	Workers   int `yaml:"workers" env:"POOL_WORKERS"`
	QueueSize int `yaml:"queue_size" env:"POOL_QUEUE_SIZE"`
}

type Scanner struct {
	Latency    time.Duration `yaml:"latency" env:"SCANNER_LATENCY"`
	ClearRatio float64       `yaml:"clear_ratio" env:"SCANNER_CLEAR_RATIO"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Default returns the configuration used for everything the file leaves out.
func Default() Server {
	workers := runtime.NumCPU()
	return Server{
		API: Api{
			HTTPAddr:  "0.0.0.0:8002",
			MaxMemory: 32 << 20,
		},
		Storage: Storage{
			Backend:   BackendFS,
			UploadDir: "uploads",
			Capacity:  100 << 20,
		},
		Pool: Pool{
			Workers:   workers,
			QueueSize: 2 * workers,
		},
		Scanner: Scanner{
			Latency:    time.Second,
			ClearRatio: 0.5,
		},
		Log: Log{Level: "info"},
	}
}

// Parse reads the yaml file at path on top of Default and then applies
// environment overrides. An empty path means defaults plus environment.
func Parse(path string) (Server, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Server{}, fmt.Errorf("can't read config file: %w", err)
		}
		if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Server{}, fmt.Errorf("can't parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("can't apply environment: %w", err)
	}

	return cfg, nil
}

func (s Server) Validate() error {
	var errs []error

	if s.API.HTTPAddr == "" {
		errs = append(errs, errors.New("api.http_addr is required"))
	}
	if s.API.MaxMemory <= 0 {
		errs = append(errs, errors.New("api.max_memory must be positive"))
	}

	switch s.Storage.Backend {
	case BackendFS:
		if s.Storage.UploadDir == "" {
			errs = append(errs, errors.New("storage.upload_dir is required"))
		}
	case BackendMemory:
		if s.Storage.Capacity <= 0 {
			errs = append(errs, errors.New("storage.capacity must be positive"))
		}
	case BackendS3:
		if s.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", s.Storage.Backend))
	}

	if s.Pool.Workers < 1 {
		errs = append(errs, errors.New("pool.workers must be at least 1"))
	}
	if s.Pool.QueueSize < 0 {
		errs = append(errs, errors.New("pool.queue_size can't be negative"))
	}
	if s.Scanner.Latency < 0 {
		errs = append(errs, errors.New("scanner.latency can't be negative"))
	}
	if s.Scanner.ClearRatio < 0 || s.Scanner.ClearRatio > 1 {
		errs = append(errs, errors.New("scanner.clear_ratio must be within [0, 1]"))
	}

	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", s.Log.Level))
	}

	return errors.Join(errs...)
}
