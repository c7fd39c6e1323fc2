// Package config loads the parameters of a NUCA simulation from a YAML file,
// an optional .env file and NUCASIM_* environment variables.
package config

import (
	"bytes"
	"io"
	"math/bits"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/nucasim/mem/cache/nuca"
	"github.com/sarchlab/nucasim/mem/cache/tagging"
	"github.com/sarchlab/nucasim/sim"
	"github.com/sarchlab/nucasim/sim/queueing"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration file.
const EnvPrefix = "NUCASIM_"

// QueueModel configures the data array contention model.
type QueueModel struct {
	Enabled  bool   `yaml:"enabled"`
	Type     string `yaml:"type"`
	Channels int    `yaml:"channels"`
}

// NUCA holds the parameters of each NUCA cache. Latencies are in cycles.
type NUCA struct {
	BlockSize         int        `yaml:"block_size"`
	NumSets           int        `yaml:"num_sets"`
	Associativity     int        `yaml:"associativity"`
	ReplacementPolicy string     `yaml:"replacement_policy"`
	AddressHash       string     `yaml:"address_hash"`
	FrequencyGHz      float64    `yaml:"frequency_ghz"`
	TagsAccessLatency uint64     `yaml:"tags_access_latency"`
	DataAccessLatency uint64     `yaml:"data_access_latency"`
	PCMWriteLatency   uint64     `yaml:"pcm_write_latency"`
	BandwidthGBps     float64    `yaml:"bandwidth_gbps"`
	QueueModel        QueueModel `yaml:"queue_model"`
	ReadCountSource   string     `yaml:"read_count_source"`
	FlushScope        string     `yaml:"flush_scope"`
	StrictAlignment   bool       `yaml:"strict_alignment"`
}

// Simulation holds the parameters of the driver.
type Simulation struct {
	NumCores       int    `yaml:"num_cores"`
	WarmupAccesses uint64 `yaml:"warmup_accesses"`
	RecordPath     string `yaml:"record_path"`
	Monitor        bool   `yaml:"monitor"`
	MonitorPort    int    `yaml:"monitor_port"`
	OpenBrowser    bool   `yaml:"open_browser"`
}

// Config is the full configuration of a run.
type Config struct {
	NUCA       NUCA       `yaml:"nuca"`
	Simulation Simulation `yaml:"simulation"`
}

// Default returns the configuration of a 1 MB, 16-way NUCA cache per core,
// with the queue model disabled.
func Default() *Config {
	return &Config{
		NUCA: NUCA{
			BlockSize:         64,
			NumSets:           1024,
			Associativity:     16,
			ReplacementPolicy: "lru",
			AddressHash:       "mask",
			FrequencyGHz:      2.66,
			TagsAccessLatency: 10,
			DataAccessLatency: 30,
			PCMWriteLatency:   0,
			BandwidthGBps:     0,
			QueueModel: QueueModel{
				Enabled:  false,
				Type:     "basic",
				Channels: 1,
			},
			ReadCountSource: "evicted",
			FlushScope:      "primary",
		},
		Simulation: Simulation{
			NumCores: 1,
		},
	}
}

// Load reads a configuration file over the defaults. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		return c, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read configuration")
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	err = dec.Decode(c)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	return c, nil
}

// LoadDotEnv loads the given .env files into the environment. Missing files
// are skipped. Variables that are already set are not replaced.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}

	return nil
}

// ApplyEnv overrides fields with the NUCASIM_* environment variables that are
// set.
func (c *Config) ApplyEnv() error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"NUM_CORES", intSetter(&c.Simulation.NumCores)},
		{"WARMUP_ACCESSES", uintSetter(&c.Simulation.WarmupAccesses)},
		{"RECORD_PATH", stringSetter(&c.Simulation.RecordPath)},
		{"MONITOR_PORT", intSetter(&c.Simulation.MonitorPort)},
		{"NUM_SETS", intSetter(&c.NUCA.NumSets)},
		{"ASSOCIATIVITY", intSetter(&c.NUCA.Associativity)},
		{"BANDWIDTH_GBPS", floatSetter(&c.NUCA.BandwidthGBps)},
		{"QUEUE_MODEL_ENABLED", boolSetter(&c.NUCA.QueueModel.Enabled)},
		{"QUEUE_MODEL_TYPE", stringSetter(&c.NUCA.QueueModel.Type)},
		{"READ_COUNT_SOURCE", stringSetter(&c.NUCA.ReadCountSource)},
		{"FLUSH_SCOPE", stringSetter(&c.NUCA.FlushScope)},
	}

	for _, o := range overrides {
		v, set := os.LookupEnv(EnvPrefix + o.key)
		if !set {
			continue
		}

		if err := o.apply(v); err != nil {
			return errors.Wrapf(err, "invalid %s%s", EnvPrefix, o.key)
		}
	}

	return nil
}

func intSetter(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func uintSetter(p *uint64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func floatSetter(p *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func boolSetter(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func stringSetter(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}

// Validate checks that the configuration can build a simulation.
func (c *Config) Validate() error {
	n := c.NUCA

	if n.BlockSize <= 0 || bits.OnesCount(uint(n.BlockSize)) != 1 {
		return errors.Errorf("block size %d is not a power of 2", n.BlockSize)
	}

	if n.NumSets <= 0 {
		return errors.Errorf("number of sets must be positive, got %d",
			n.NumSets)
	}

	if n.Associativity <= 0 {
		return errors.Errorf("associativity must be positive, got %d",
			n.Associativity)
	}

	if n.FrequencyGHz <= 0 {
		return errors.Errorf("frequency must be positive, got %g GHz",
			n.FrequencyGHz)
	}

	if n.BandwidthGBps < 0 {
		return errors.Errorf("bandwidth cannot be negative, got %g GB/s",
			n.BandwidthGBps)
	}

	if n.QueueModel.Enabled && n.BandwidthGBps == 0 {
		return errors.New("the queue model needs a positive bandwidth")
	}

	if _, err := tagging.NewVictimFinder(n.ReplacementPolicy); err != nil {
		return errors.Wrap(err, "invalid replacement policy")
	}

	hash, err := tagging.ParseAddressHash(n.AddressHash)
	if err != nil {
		return errors.Wrap(err, "invalid address hash")
	}

	if hash == tagging.HashMask && bits.OnesCount(uint(n.NumSets)) != 1 {
		return errors.Errorf(
			"the mask hash needs a power-of-2 number of sets, got %d",
			n.NumSets)
	}

	if n.QueueModel.Enabled {
		_, err = queueing.New(queueing.Kind(n.QueueModel.Type),
			n.QueueModel.Channels)
		if err != nil {
			return errors.Wrap(err, "invalid queue model")
		}
	}

	if _, err = nuca.ParseReadCountSource(n.ReadCountSource); err != nil {
		return errors.Wrap(err, "invalid read count source")
	}

	if _, err = nuca.ParseFlushScope(n.FlushScope); err != nil {
		return errors.Wrap(err, "invalid flush scope")
	}

	if c.Simulation.NumCores <= 0 {
		return errors.Errorf("number of cores must be positive, got %d",
			c.Simulation.NumCores)
	}

	if c.Simulation.MonitorPort < 0 || c.Simulation.MonitorPort > 65535 {
		return errors.Errorf("invalid monitor port %d",
			c.Simulation.MonitorPort)
	}

	return nil
}

// Freq returns the clock frequency of the caches.
func (c *Config) Freq() sim.Freq {
	return sim.Freq(c.NUCA.FrequencyGHz) * sim.GHz
}

// NUCABuilder returns a builder that carries the cache parameters. The
// configuration must be valid.
func (c *Config) NUCABuilder() (nuca.Builder, error) {
	n := c.NUCA

	hash, err := tagging.ParseAddressHash(n.AddressHash)
	if err != nil {
		return nuca.Builder{}, err
	}

	source, err := nuca.ParseReadCountSource(n.ReadCountSource)
	if err != nil {
		return nuca.Builder{}, err
	}

	b := nuca.MakeBuilder().
		WithFreq(c.Freq()).
		WithLog2BlockSize(bits.TrailingZeros(uint(n.BlockSize))).
		WithNumSets(n.NumSets).
		WithWayAssociativity(n.Associativity).
		WithReplacePolicy(n.ReplacementPolicy).
		WithAddressHash(hash).
		WithTagsAccessLatency(n.TagsAccessLatency).
		WithDataAccessLatency(n.DataAccessLatency).
		WithPCMWriteLatency(n.PCMWriteLatency).
		WithBandwidth(n.BandwidthGBps).
		WithQueueModelEnabled(n.QueueModel.Enabled).
		WithQueueModelKind(queueing.Kind(n.QueueModel.Type)).
		WithQueueChannels(n.QueueModel.Channels).
		WithReadCountSource(source).
		WithStrictAlignment(n.StrictAlignment)

	return b, nil
}

// NewAggregator returns an aggregator with the configured flush scope.
func (c *Config) NewAggregator() (*nuca.Aggregator, error) {
	scope, err := nuca.ParseFlushScope(c.NUCA.FlushScope)
	if err != nil {
		return nil, err
	}

	return nuca.NewAggregator().WithFlushScope(scope), nil
}

// Dump writes the resolved configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}

	return enc.Close()
}
