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

package server_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/server"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults applied test", func(t *testing.T) {
		conf := server.NewConfig()
		assert.Equal(t, server.DefaultListenAddr, conf.ListenAddr)
		assert.Equal(t, server.DefaultWriteTimeout, conf.WriteTimeout)
		assert.Equal(t, server.DefaultSendBuffer, conf.SendBuffer)
		assert.NoError(t, conf.Validate())
	})

	t.Run("config from file test", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yml")
		require.NoError(t, os.WriteFile(path, []byte(
			"ListenAddr: \"localhost:4040\"\nRedisAddr: \"localhost:6379\"\n",
		), 0o644))

		conf, err := server.NewConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "localhost:4040", conf.ListenAddr)
		assert.Equal(t, server.DefaultWriteTimeout, conf.WriteTimeout)
		assert.Equal(t, server.DefaultRedisChannelPrefix, conf.RedisChannelPrefix)
		assert.NoError(t, conf.Validate())
	})

	t.Run("missing file test", func(t *testing.T) {
		_, err := server.NewConfigFromFile("nonexistent.yml")
		assert.Error(t, err)
	})

	t.Run("invalid values rejected test", func(t *testing.T) {
		cases := map[string]func(*server.Config){
			"bad listen addr":   func(c *server.Config) { c.ListenAddr = "not an addr" },
			"zero timeout":      func(c *server.Config) { c.WriteTimeout = 0 },
			"negative buffer":   func(c *server.Config) { c.SendBuffer = -1 },
			"bad metrics addr":  func(c *server.Config) { c.MetricsAddr = "::::" },
			"bad redis address": func(c *server.Config) { c.RedisAddr = "???" },
		}
		for name, mutate := range cases {
			conf := server.NewConfig()
			conf.WriteTimeout = time.Second
			mutate(conf)
			assert.Error(t, conf.Validate(), name)
		}
	})
}
