/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_tv/internal/guide"
)

var channelAddr string

var channelCmd = &cobra.Command{
	Use:   "channel [up|down|NAME]",
	Short: "Change the channel on a running station",
	Long:  "Tune a running station through its guide API: step up or down through the current line-up, or jump straight to a named channel.",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannel,
}

func init() {
	channelCmd.Flags().StringVar(&channelAddr, "addr", defaultGuideAddr(), "guide API base URL")
	rootCmd.AddCommand(channelCmd)
}

func defaultGuideAddr() string {
	if v := os.Getenv("GRIMNIRTV_GUIDE_ADDR"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func runChannel(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	target := args[0]
	if target == "up" || target == "down" {
		var err error
		target, err = stepChannel(client, target)
		if err != nil {
			return err
		}
	}

	body, _ := json.Marshal(map[string]string{"channel": target})
	resp, err := client.Post(channelAddr+"/api/v1/tune", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("tune request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("tune rejected: %s", resp.Status)
	}
	fmt.Printf("tuned to %s\n", target)
	return nil
}

// stepChannel resolves up/down against the station's current line-up.
func stepChannel(client *http.Client, direction string) (string, error) {
	resp, err := client.Get(channelAddr + "/api/v1/guide")
	if err != nil {
		return "", fmt.Errorf("fetch guide: %w", err)
	}
	defer resp.Body.Close()

	var listing guide.Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("decode guide: %w", err)
	}

	// The same channel name can exist in several day-part folders;
	// step within the one that is actually on air.
	current := listing.NowPlaying.Channel
	for _, scope := range listing.Scopes {
		for i, ch := range scope.Channels {
			if ch.Name != current || !ch.OnAir {
				continue
			}
			n := len(scope.Channels)
			if direction == "up" {
				return scope.Channels[(i+1)%n].Name, nil
			}
			return scope.Channels[(i-1+n)%n].Name, nil
		}
	}
	return "", fmt.Errorf("current channel %q not in line-up", current)
}
