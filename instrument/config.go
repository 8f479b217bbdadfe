package risonanza

import (
	"errors"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	IPAddress      string  `mapstructure:"ip_address"`
	Port           int     `mapstructure:"port"`
	FPGAClkFreqMHz float64 `mapstructure:"fpga_clk_freq_mhz"`
	User           string  `mapstructure:"user"`
	Password       string  `mapstructure:"password"`
}

type SpectrometerConfig struct {
	SampleRate float64 `mapstructure:"sample_rate"`
	TXFreq     float64 `mapstructure:"tx_freq"`
	RXFreq     float64 `mapstructure:"rx_freq"` // 0 mirrors tx_freq
}

type ArchiveConfig struct {
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
}

type DisplayConfig struct {
	Addr      string `mapstructure:"addr"`
	RefreshMS int    `mapstructure:"refresh_ms"`
	MIDIPort  int    `mapstructure:"midi_port"` // negative disables the sonifier
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Spectrometer SpectrometerConfig `mapstructure:"spectrometer"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Display      DisplayConfig      `mapstructure:"display"`
}

// LoadConfig reads risonanza.toml from path, or searches /opt then
// the working directory. A missing file is not an error, the
// defaults describe a stock Red Pitaya on the bench network.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("risonanza")
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/opt")
		v.AddConfigPath(".")
	}

	v.SetDefault("server.ip_address", "192.168.1.100")
	v.SetDefault("server.port", 11111)
	v.SetDefault("server.fpga_clk_freq_mhz", 122.88)
	v.SetDefault("server.user", "root")
	v.SetDefault("server.password", "root")
	v.SetDefault("spectrometer.sample_rate", 320e3)
	v.SetDefault("spectrometer.tx_freq", 0)
	v.SetDefault("spectrometer.rx_freq", 0)
	v.SetDefault("archive.path", "risonanza-archive")
	v.SetDefault("archive.batch_size", 8)
	v.SetDefault("display.addr", ":8090")
	v.SetDefault("display.refresh_ms", 500)
	v.SetDefault("display.midi_port", -1)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Could not read config", slog.Any("Error", err))
			return nil, err
		}
		slog.Info("No config file found, using defaults")
	} else {
		slog.Info("Config loaded", slog.String("file", v.ConfigFileUsed()))
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		slog.Error("Could not decode config", slog.Any("Error", err))
		return nil, err
	}

	return &c, nil
}

// ConnectionSettings is what the Spectrometer needs to find its
// controller on the network.
type ConnectionSettings struct {
	Addr          string
	Port          int
	FPGAClockFreq float64 // Hz
}

func (cs ConnectionSettings) SocketAddr() string {
	return net.JoinHostPort(cs.Addr, strconv.Itoa(cs.Port))
}

func (c *Config) ConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		Addr:          c.Server.IPAddress,
		Port:          c.Server.Port,
		FPGAClockFreq: c.Server.FPGAClkFreqMHz * 1e6,
	}
}
