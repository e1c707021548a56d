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

package main

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/pkg/dash"
	"github.com/rgbkrk/autodash/pkg/document"
)

// The heat animation eases the temperature from 0 to the maximum over 8
// seconds, quadratic ease-in: slow start, fast finish.
const (
	heatDuration = 8 * time.Second
	heatStep     = 100 * time.Millisecond
)

func newSetTempCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-temp <document-ref> <value>",
		Short: "Set the temperature (clamped to 0-40)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.SetTemperature(value, now)
				cmd.Printf("temperature: %d\n", state.Temperature)
				return nil
			})
		},
	}
}

func newHeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heat <document-ref>",
		Short: "Steadily ease the temperature from 0 to 40",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(args[0], func(ctx context.Context, _ *client.Client, h *document.Handle) error {
				set := func(temp int64) error {
					state, err := hydrateState(h)
					if err != nil {
						return err
					}
					if state.Temperature == temp {
						return nil
					}
					state.SetTemperature(temp, time.Now())
					if err := document.Reconcile(ctx, h, state); err != nil {
						return err
					}
					cmd.Printf("temperature: %d\n", temp)
					return nil
				}

				if err := set(0); err != nil {
					return err
				}
				start := time.Now()
				ticker := time.NewTicker(heatStep)
				defer ticker.Stop()
				for range ticker.C {
					progress := math.Min(float64(time.Since(start))/float64(heatDuration), 1.0)
					eased := progress * progress
					temp := int64(math.Round(eased * float64(dash.TemperatureMax)))
					if err := set(temp); err != nil {
						return err
					}
					if temp >= dash.TemperatureMax {
						break
					}
				}
				cmd.Println("maximum temperature reached")
				time.Sleep(200 * time.Millisecond)
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newSetTempCmd())
	rootCmd.AddCommand(newHeatCmd())
}
