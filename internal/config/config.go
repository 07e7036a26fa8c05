package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Input        InputConfig        `mapstructure:"input"`
	Serial       SerialConfig       `mapstructure:"serial"`
	Listen       ListenConfig       `mapstructure:"listen"`
	Capture      CaptureConfig      `mapstructure:"capture"`
	Output       OutputConfig       `mapstructure:"output"`
	Faults       FaultsConfig       `mapstructure:"faults"`
	Log          LogConfig          `mapstructure:"log"`
	MessageQueue MessageQueueConfig `mapstructure:"message_queue"`
}

type InputConfig struct {
	Path       string `mapstructure:"path"`
	Encoding   string `mapstructure:"encoding"`
	ChunkBytes int    `mapstructure:"chunk_bytes"`
}

type SerialConfig struct {
	Port          string `mapstructure:"port"`
	BaudRate      int    `mapstructure:"baud_rate"`
	ReadTimeoutMs int    `mapstructure:"read_timeout_ms"`
}

type ListenConfig struct {
	Addr string `mapstructure:"addr"`
}

type CaptureConfig struct {
	Duration      string `mapstructure:"duration"`
	MaxFrames     int    `mapstructure:"max_frames"`
	Strict        bool   `mapstructure:"strict"`
	NoProgress    bool   `mapstructure:"no_progress"`
	MaxFrameBytes int    `mapstructure:"max_frame_bytes"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

type FaultsConfig struct {
	SourceC string `mapstructure:"source_c"`
	Count   int    `mapstructure:"count"`
}

type MessageQueueConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"`
	Topic    string         `mapstructure:"topic"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
}

type RabbitMQConfig struct {
	URL         string `mapstructure:"url"`
	VirtualHost string `mapstructure:"virtual_host"`
	Exchange    string `mapstructure:"exchange"`
	RoutingKey  string `mapstructure:"routing_key"`
	QueueName   string `mapstructure:"queue_name"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// FlagKeys 将命令行 flag 名映射到配置键
var FlagKeys = map[string]string{
	"input":          "input.path",
	"input-encoding": "input.encoding",
	"serial-port":    "serial.port",
	"baudrate":       "serial.baud_rate",
	"listen":         "listen.addr",
	"duration":       "capture.duration",
	"max-frames":     "capture.max_frames",
	"strict":         "capture.strict",
	"no-progress":    "capture.no_progress",
	"output":         "output.path",
	"source-c":       "faults.source_c",
	"fault-count":    "faults.count",
	"log-level":      "log.level",
	"log-file":       "log.filename",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.chunk_bytes", 64*1024)
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout_ms", 50)
	v.SetDefault("capture.max_frame_bytes", 1024*1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("message_queue.type", "rabbitmq")
	v.SetDefault("message_queue.topic", "bms_frames")
	v.SetDefault("message_queue.mqtt.client_id", "bmschain-logger")
}

// LoadConfig 读取可选的配置文件, 叠加 BMSCHAIN_ 环境变量与命令行 flag。
// 优先级: flag > 环境变量 > 配置文件 > 默认值。
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BMSCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
