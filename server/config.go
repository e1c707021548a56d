/*
 * Copyright 2024 The Autodash Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Below are the default values of the relay config.
const (
	DefaultListenAddr   = "localhost:3030"
	DefaultMetricsAddr  = "localhost:3031"
	DefaultWriteTimeout = 5 * time.Second
	DefaultSendBuffer   = 64

	DefaultRedisChannelPrefix = "autodash"
)

// Config is the configuration for creating a relay instance.
type Config struct {
	// ListenAddr is the websocket listen address.
	ListenAddr string `yaml:"ListenAddr" validate:"required,hostname_port"`

	// MetricsAddr serves the Prometheus endpoint. Empty disables it.
	MetricsAddr string `yaml:"MetricsAddr" validate:"omitempty,hostname_port"`

	// WriteTimeout bounds a single websocket write to a member.
	WriteTimeout time.Duration `yaml:"WriteTimeout" validate:"gt=0"`

	// SendBuffer is the per-connection outbound queue length. A member that
	// cannot drain its queue has frames dropped rather than stalling the
	// room.
	SendBuffer int `yaml:"SendBuffer" validate:"gt=0"`

	// RedisAddr enables cross-instance fanout through redis pub/sub when
	// non-empty.
	RedisAddr string `yaml:"RedisAddr" validate:"omitempty,hostname_port"`

	// RedisChannelPrefix namespaces the per-document pub/sub channels.
	RedisChannelPrefix string `yaml:"RedisChannelPrefix"`
}

// NewConfig returns a Config with reasonable defaults.
func NewConfig() *Config {
	c := &Config{}
	c.ensureDefaultValue()
	return c
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// ensureDefaultValue sets the value of the option to which the default
// value should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.RedisAddr != "" && c.RedisChannelPrefix == "" {
		c.RedisChannelPrefix = DefaultRedisChannelPrefix
	}
}
