// Mechanisms for interacting with configuration YAML files on disk.

package chunkfs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/Ycyken/chunkfs/db"
)

//===========================================================================
// Config Structs and Interfaces
//===========================================================================

// Configuration is an interface for all config objects and provides a
// mechanism to create nested configurations read from a YAML file.
type Configuration interface {
	Defaults() error // Updates the configuration with default values.
	Validate() error // Validates the input data, returns an error if invalid.
	String() string  // Print out the pretty representation of the config.
}

// Config provides the base structure for reading configuration values
// from YAML configuration files and supplies the primary inputs to a
// file system built with FromConfig.
type Config struct {
	Logging  *LoggingConfig  `yaml:"logging"`  // Configuration for logging
	Database *DatabaseConfig `yaml:"database"` // Chunk database configuration
	Storage  *StorageConfig  `yaml:"storage"`  // Chunking and hashing configuration
}

// LoadConfig creates a Config object with reasonable defaults, overlays
// the YAML configuration at the given path if one is specified, and then
// validates the result.
func LoadConfig(confPath string) (*Config, error) {
	conf := new(Config)
	if err := conf.Defaults(); err != nil {
		return nil, err
	}

	if confPath != "" {
		if err := conf.Read(confPath); err != nil {
			return nil, err
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Read a YAML configuration file from a path.
func (conf *Config) Read(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, conf)
}

// Defaults sets the reasonable defaults on the Config object.
func (conf *Config) Defaults() error {
	conf.Logging = new(LoggingConfig)
	conf.Logging.Defaults()

	conf.Database = new(DatabaseConfig)
	conf.Database.Defaults()

	conf.Storage = new(StorageConfig)
	conf.Storage.Defaults()

	return nil
}

// Validate ensures that required settings are correctly set.
func (conf *Config) Validate() error {
	if err := conf.Logging.Validate(); err != nil {
		return err
	}

	if err := conf.Database.Validate(); err != nil {
		return err
	}

	return conf.Storage.Validate()
}

// String returns a pretty representation of the configuration.
func (conf *Config) String() string {
	return conf.Database.String() + "\n" + conf.Storage.String() + "\n" + conf.Logging.String()
}

//===========================================================================
// Logging Configuration
//===========================================================================

// LoggingConfig is passed to the InitLogger function to create meaningful,
// leveled logging to a file or to stdout depending on the configuration.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // specifies the minimum log level
	Path  string `yaml:"path,omitempty"`  // optional path to location on disk to write file
}

// Defaults sets the reasonable defaults on the LoggingConfig object.
func (conf *LoggingConfig) Defaults() error {
	conf.Level = "INFO"
	return nil
}

// Validate ensures that required logging settings are correct.
func (conf *LoggingConfig) Validate() error {
	if !ListContains(strings.ToUpper(conf.Level), levelNames) {
		return ImproperlyConfigured("'%s' is not a valid log level", conf.Level)
	}
	return nil
}

// String returns a pretty representation of the logging configuration.
func (conf *LoggingConfig) String() string {
	path := conf.Path
	if path == "" {
		path = "stdout"
	}
	return fmt.Sprintf("%s logging to %s", conf.Level, path)
}

//===========================================================================
// Database Configuration
//===========================================================================

// DatabaseConfig is passed to the OpenDatabase function to open the right
// kind of chunk database behind the Database interface.
type DatabaseConfig struct {
	Driver string `yaml:"driver,omitempty"` // specifies the database driver to use
	Path   string `yaml:"path,omitempty"`   // path to the database file, directory, or block device
	Size   uint64 `yaml:"size,omitempty"`   // capacity in bytes for the disk driver on a regular file
}

// Defaults sets the reasonable defaults on the DatabaseConfig object.
func (conf *DatabaseConfig) Defaults() error {
	conf.Driver = db.MemoryDriver
	return nil
}

// Validate ensures that required database settings are correct.
func (conf *DatabaseConfig) Validate() error {
	conf.Driver = Regularize(conf.Driver)

	if !ListContains(conf.Driver, db.DriverNames) {
		return ImproperlyConfigured("'%s' is not a valid database driver", conf.Driver)
	}

	// Every driver except the in-memory table needs a path.
	if conf.Driver != db.MemoryDriver && conf.Path == "" {
		return ImproperlyConfigured("must specify a path for the %s driver", conf.Driver)
	}

	// The disk driver on a regular file needs a capacity to truncate to.
	if conf.Driver == db.DiskDriver && conf.Size == 0 && !isBlockDevice(conf.Path) {
		return ImproperlyConfigured("must specify a size for the disk driver on a regular file")
	}

	return nil
}

// String returns a pretty representation of the database configuration.
func (conf *DatabaseConfig) String() string {
	if conf.Driver == db.MemoryDriver {
		return "in-memory chunk database"
	}
	return fmt.Sprintf("%s chunk database at %s", conf.Driver, conf.Path)
}

// isBlockDevice reports whether the path names an existing block device.
func isBlockDevice(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeDevice != 0
}

//===========================================================================
// Storage Configuration
//===========================================================================

// StorageConfig is passed to the NewChunker and CreateHasher functions to
// initialize the chunking and hashing mechanisms of the write pipeline.
type StorageConfig struct {
	Chunking     string `yaml:"chunking,omitempty"`       // Either "leap" (default) or "fixed"
	ChunkSize    int    `yaml:"chunk_size,omitempty"`     // The chunk size for fixed-size chunking
	MinChunkSize int    `yaml:"min_chunk_size,omitempty"` // Minimum chunk size for CDC chunking
	MaxChunkSize int    `yaml:"max_chunk_size,omitempty"` // Maximum chunk size for CDC chunking
	Hashing      string `yaml:"hashing,omitempty"`        // Identifies the hashing algorithm used
}

// Defaults sets the reasonable defaults on the StorageConfig object.
func (conf *StorageConfig) Defaults() error {
	// Default chunker is leap-based content-defined chunking.
	conf.Chunking = LeapChunking

	// Target chunk size is 4096 bytes; CDC bounds bracket it.
	conf.ChunkSize = 4096
	conf.MinChunkSize = 2048
	conf.MaxChunkSize = 8192

	// Default hashing algorithm is SHA256 to prevent collisions.
	conf.Hashing = SHA256

	return nil
}

// Validate ensures that required chunking settings are correct.
func (conf *StorageConfig) Validate() error {
	conf.Chunking = Regularize(conf.Chunking)
	if !ListContains(conf.Chunking, chunkingMethodNames) {
		return ImproperlyConfigured("'%s' is not a valid chunking mechanism", conf.Chunking)
	}

	if conf.ChunkSize < 1 {
		return ImproperlyConfigured("must specify a chunk size greater than 0 bytes")
	}

	if conf.MinChunkSize < 1 || conf.MaxChunkSize < conf.MinChunkSize {
		return ImproperlyConfigured("chunk size bounds must satisfy 0 < min <= max")
	}

	conf.Hashing = Regularize(conf.Hashing)
	if !ListContains(conf.Hashing, hashingAlgorithmNames) {
		return ImproperlyConfigured("'%s' is not a valid hashing algorithm", conf.Hashing)
	}

	return nil
}

// String returns a pretty representation of the storage configuration.
func (conf *StorageConfig) String() string {
	return fmt.Sprintf("%s chunking with %s hashing", conf.Chunking, conf.Hashing)
}

//===========================================================================
// Helpers
//===========================================================================

// ListContains searches a list for a particular value in O(n) time.
func ListContains(value string, list []string) bool {
	for _, elem := range list {
		if elem == value {
			return true
		}
	}
	return false
}

// Regularize lowercases and trims a configuration name for matching.
func Regularize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
