package internal

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port                 int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	StorageDriver        string        `env:"STORAGE_DRIVER,default=sqlite" validate:"oneof=sqlite badger bolt"`
	SQLiteDir            string        `env:"SQLITE_DIR,default=./data/rooms" validate:"required_if=StorageDriver sqlite"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=StorageDriver badger"`
	BoltFilepath         string        `env:"BOLT_FILEPATH,default=./data/tandem.bolt" validate:"required_if=StorageDriver bolt"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s" validate:"gt=0"`
	MaxMessageBytes      int64         `env:"MAX_MESSAGE_BYTES,default=65536" validate:"min=256"`
	MessageRate          float64       `env:"MESSAGE_RATE,default=20" validate:"gt=0"`
	MessageBurst         int           `env:"MESSAGE_BURST,default=40" validate:"min=1"`
	ReportInterval       time.Duration `env:"REPORT_INTERVAL,default=1m" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

// LoadConfig reads an optional .env file, then the environment. Real environment
// variables win over the file.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
