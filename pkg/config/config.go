package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	// HeaderSize is the fixed part of the log header: magic text plus magic version.
	HeaderSize = 8

	DefaultCapacity         = 64 << 20
	DefaultMaximumKeySize   = math.MaxUint16
	DefaultMaximumValueSize = math.MaxUint32
	DefaultFlushQueueSize   = 64
	DefaultReserved         = 16
)

const (
	IndexSkipMap = "skipmap"
	IndexBTree   = "btree"

	ChecksumXXHash = "xxhash"
	ChecksumCRC64  = "crc64"
)

// Config is the root configuration of the ordwal binary.
type Config struct {
	Logger LoggerConfig `yaml:"logger" validate:"required"`
	Server ServerConfig `yaml:"http-server" validate:"required"`
	WAL    Options      `yaml:"wal" validate:"required"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Options configures a single log instance. The zero value is not usable, start from Default().
type Options struct {
	// Path of the backing file. Empty means an anonymous in-memory log.
	Path     string `yaml:"path"`
	Capacity uint32 `yaml:"capacity" validate:"required"`
	// Reserved is the number of caller-defined header bytes following the magic.
	Reserved         uint32 `yaml:"reserved"`
	MaximumKeySize   uint32 `yaml:"maximum_key_size" validate:"required"`
	MaximumValueSize uint32 `yaml:"maximum_value_size" validate:"required"`
	MagicVersion     uint16 `yaml:"magic_version"`
	SyncOnWrite      bool   `yaml:"sync_on_write"`
	ReadOnly         bool   `yaml:"read_only"`
	Versioned        bool   `yaml:"versioned"`

	IndexBackend string `yaml:"index_backend" validate:"oneof=skipmap btree"`
	Checksum     string `yaml:"checksum" validate:"oneof=xxhash crc64"`

	// InlineThreshold is the key or value length above which bytes are written out of line.
	// Zero keeps everything inline.
	InlineThreshold uint32 `yaml:"inline_threshold"`

	AsyncFlush     bool `yaml:"async_flush"`
	FlushQueueSize int  `yaml:"flush_queue_size" validate:"min=0"`

	Logger *slog.Logger `yaml:"-"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
		WAL: binaryOptions(),
	}
}

// binaryOptions are the log options of the ordwal binary: a versioned file log with room
// for an instance id in the header.
func binaryOptions() Options {
	o := DefaultOptions()
	o.Path = "ordwal.wal"
	o.Reserved = DefaultReserved
	o.Versioned = true
	return o
}

func DefaultOptions() Options {
	return Options{
		Capacity:         DefaultCapacity,
		MaximumKeySize:   DefaultMaximumKeySize,
		MaximumValueSize: DefaultMaximumValueSize,
		IndexBackend:     IndexSkipMap,
		Checksum:         ChecksumXXHash,
		FlushQueueSize:   DefaultFlushQueueSize,
	}
}

// DataOffset is where the first record starts.
func (o Options) DataOffset() uint32 {
	return HeaderSize + o.Reserved
}

func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

var errInvalid = errors.New("invalid options")

func (o Options) Validate() error {
	if uint64(o.Capacity) <= uint64(HeaderSize)+uint64(o.Reserved) {
		return fmt.Errorf("%w: capacity %d must be larger than the header size %d", errInvalid, o.Capacity, uint64(HeaderSize)+uint64(o.Reserved))
	}
	if o.MaximumKeySize == 0 {
		return fmt.Errorf("%w: maximum_key_size must be positive", errInvalid)
	}
	if o.MaximumValueSize == 0 {
		return fmt.Errorf("%w: maximum_value_size must be positive", errInvalid)
	}
	switch o.IndexBackend {
	case "", IndexSkipMap, IndexBTree:
	default:
		return fmt.Errorf("%w: unknown index_backend %q", errInvalid, o.IndexBackend)
	}
	switch o.Checksum {
	case "", ChecksumXXHash, ChecksumCRC64:
	default:
		return fmt.Errorf("%w: unknown checksum %q", errInvalid, o.Checksum)
	}
	if o.FlushQueueSize < 0 {
		return fmt.Errorf("%w: flush_queue_size must not be negative", errInvalid)
	}
	if o.ReadOnly && o.Path == "" {
		return fmt.Errorf("%w: a read-only log needs a path", errInvalid)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", errInvalid, c.Server.Port)
	}
	switch c.Logger.Level {
	case "DEBUG", "INFO", "WARN", "ERROR", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", errInvalid, c.Logger.Level)
	}
	return c.WAL.Validate()
}
