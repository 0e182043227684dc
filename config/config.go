/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"HAVEN_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"HAVEN_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"HAVEN_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"HAVEN_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"HAVEN_REDIS_DNS"`
}

// CryptomusConfig carries the crypto provider credentials. The payment and
// payout flows sign with different secrets; a flow is enabled when its secret
// is present.
type CryptomusConfig struct {
	BaseUrl     string `json:"base_url" envconfig:"HAVEN_CRYPTOMUS_BASE_URL"`
	Merchant    string `json:"merchant" envconfig:"HAVEN_CRYPTOMUS_MERCHANT"`
	PaymentKey  string `json:"payment_key" envconfig:"HAVEN_CRYPTOMUS_PAYMENT_KEY"`
	PayoutKey   string `json:"payout_key" envconfig:"HAVEN_CRYPTOMUS_PAYOUT_KEY"`
	CallbackUrl string `json:"callback_url" envconfig:"HAVEN_CRYPTOMUS_CALLBACK_URL"`
}

// KopokopoConfig carries the mobile money (M-Pesa STK push) provider
// credentials. ApiKey is the shared secret for webhook HMAC verification.
type KopokopoConfig struct {
	BaseUrl      string `json:"base_url" envconfig:"HAVEN_KOPOKOPO_BASE_URL"`
	ClientId     string `json:"client_id" envconfig:"HAVEN_KOPOKOPO_CLIENT_ID"`
	ClientSecret string `json:"client_secret" envconfig:"HAVEN_KOPOKOPO_CLIENT_SECRET"`
	ApiKey       string `json:"api_key" envconfig:"HAVEN_KOPOKOPO_API_KEY"`
	TillNumber   string `json:"till_number" envconfig:"HAVEN_KOPOKOPO_TILL_NUMBER"`
	CallbackUrl  string `json:"callback_url" envconfig:"HAVEN_KOPOKOPO_CALLBACK_URL"`
}

type PollerConfig struct {
	IntervalSec int `json:"interval_sec" envconfig:"HAVEN_POLLER_INTERVAL_SEC"`
	TimeoutSec  int `json:"timeout_sec" envconfig:"HAVEN_POLLER_TIMEOUT_SEC"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"HAVEN_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"HAVEN_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"HAVEN_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"HAVEN_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"HAVEN_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Cryptomus       CryptomusConfig  `json:"cryptomus"`
	Kopokopo        KopokopoConfig   `json:"kopokopo"`
	Poller          PollerConfig     `json:"poller"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("haven", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called haven.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Haven Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// A partially configured provider is a fatal startup error: an enabled flow
	// must never run without the secret that signs and verifies its traffic.
	if err := cnf.Cryptomus.validate(); err != nil {
		return err
	}
	if err := cnf.Kopokopo.validate(); err != nil {
		return err
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Poller.IntervalSec <= 0 {
		cnf.Poller.IntervalSec = 2
	}
	if cnf.Poller.TimeoutSec <= 0 {
		cnf.Poller.TimeoutSec = 60
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// Enabled reports whether the crypto provider is configured at all.
func (c *CryptomusConfig) Enabled() bool {
	return c.Merchant != "" || c.PaymentKey != "" || c.PayoutKey != ""
}

func (c *CryptomusConfig) validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Merchant == "" {
		return errors.New("cryptomus merchant id is required when a cryptomus flow is configured")
	}
	if c.PaymentKey == "" && c.PayoutKey == "" {
		return fmt.Errorf("cryptomus merchant %s configured without a payment or payout key", c.Merchant)
	}
	if c.BaseUrl == "" {
		c.BaseUrl = "https://api.cryptomus.com"
	}
	return nil
}

// Enabled reports whether the mobile money provider is configured at all.
func (k *KopokopoConfig) Enabled() bool {
	return k.ClientId != "" || k.ClientSecret != "" || k.ApiKey != ""
}

func (k *KopokopoConfig) validate() error {
	if !k.Enabled() {
		return nil
	}
	if k.ClientId == "" || k.ClientSecret == "" {
		return errors.New("kopokopo client credentials are required when the mobile money flow is configured")
	}
	if k.ApiKey == "" {
		return errors.New("kopokopo api key is required to verify webhook signatures")
	}
	if k.BaseUrl == "" {
		k.BaseUrl = "https://api.kopokopo.com"
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
