// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	MercadoPago             `yaml:"mercadopago"`
	Lifecycle               `yaml:"lifecycle"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для проверки jwt-токена маркетплейса
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// MercadoPago структура для настройки клиента платёжного шлюза
type MercadoPago struct {
	AccessToken    string        `yaml:"access_token"`
	APIURL         string        `yaml:"api_url" env-default:"https://api.mercadopago.com"`
	GatewayTimeout time.Duration `yaml:"gateway_timeout" env-default:"10s"`
}

// Lifecycle структура с параметрами жизненного цикла подписки
type Lifecycle struct {
	PaymentAttempts  int           `yaml:"payment_attempts" env-default:"3"`
	PlanPeriodMonths int           `yaml:"plan_period_months" env-default:"1"`
	GracePeriod      time.Duration `yaml:"grace_period" env-default:"72h"`
	SweepInterval    time.Duration `yaml:"sweep_interval" env-default:"1h"`
	RetailerPrice    int64         `yaml:"retailer_price" env-default:"9999"`
	WholesalerPrice  int64         `yaml:"wholesaler_price" env-default:"24999"`
}

// SMTP структура для настройки почтового транспорта уведомлений
type SMTP struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// PlanPrice возвращает стоимость периода для тарифа в сентаво.
func (l Lifecycle) PlanPrice(plan string) int64 {
	if plan == "wholesaler" {
		return l.WholesalerPrice
	}
	return l.RetailerPrice
}
