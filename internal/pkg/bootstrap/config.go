// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"orderflow/internal/pkg/utils"
)

// Config 汇总了所有服务共享的配置。
// 默认值面向本地 docker-compose 环境，线上通过配置文件或环境变量覆盖。
type Config struct {
	App struct {
		// 订单协调器调用扣减服务的有界等待时长
		DeductTimeout time.Duration `yaml:"deduct_timeout"`
		// 对账 worker 的轮询间隔
		PollInterval time.Duration `yaml:"poll_interval"`
		// 指数退避的初始延迟
		InitialRetryDelay time.Duration `yaml:"initial_retry_delay"`
		// 对账最大尝试次数（含第一次）
		MaxAttempts int `yaml:"max_attempts"`
		// 推送网关监听端的等待上限
		ListenerTimeout time.Duration `yaml:"listener_timeout"`
		// 故障注入表达式（CEL），为空表示关闭
		FaultExpression string `yaml:"fault_expression"`
		// 故障注入命中时附加的延迟
		FaultLatency time.Duration `yaml:"fault_latency"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Nacos struct {
			ServerAddrs string `yaml:"server_addrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		// Nacos 未配置时，inventory-service 的静态地址兜底
		InventoryBaseURL string `yaml:"inventory_base_url"`
	} `yaml:"infra"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// GetCurrentConfig 返回进程内的全局配置，首次调用时完成加载。
func GetCurrentConfig() Config {
	configOnce.Do(func() {
		currentConfig = loadConfig()
	})
	return currentConfig
}

func loadConfig() Config {
	cfg := defaultConfig()

	path := utils.GetEnv("CONFIG_FILE", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		// 配置文件缺失不是错误，按默认值 + 环境变量运行
		_ = yaml.Unmarshal(data, &cfg)
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func defaultConfig() Config {
	var cfg Config
	cfg.App.DeductTimeout = 3 * time.Second
	cfg.App.PollInterval = 2 * time.Second
	cfg.App.InitialRetryDelay = 2 * time.Second
	cfg.App.MaxAttempts = 5
	cfg.App.ListenerTimeout = 60 * time.Second
	cfg.App.FaultLatency = 5 * time.Second
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/orderflow?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Infra.InventoryBaseURL = "http://localhost:8082"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Infra.Nacos.Group = v
	}
	if v := os.Getenv("ZK_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("INVENTORY_BASE_URL"); v != "" {
		cfg.Infra.InventoryBaseURL = v
	}
	if v := os.Getenv("FAULT_EXPRESSION"); v != "" {
		cfg.App.FaultExpression = v
	}
	if v := os.Getenv("DEDUCT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.DeductTimeout = d
		}
	}
}
