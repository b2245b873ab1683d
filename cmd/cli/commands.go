package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	group   string
	limit   int
	user    string
	dryRun  bool
	eventTS string
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(rankingsCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sayCmd)

	for _, cmd := range []*cobra.Command{rankingsCmd, matchesCmd, enrollCmd, sayCmd} {
		cmd.Flags().StringVar(&group, "group", "", "The group (channel) id")
		_ = cmd.MarkFlagRequired("group")
	}
	rankingsCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows, 0 for the server default")
	matchesCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows, 0 for the server default")
	enrollCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report whether the participant would be created")
	sayCmd.Flags().StringVar(&user, "user", "UCLI", "The user id posting the message")
	sayCmd.Flags().StringVar(&eventTS, "ts", "", "Message timestamp; reusing one replays the same event")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server and its database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show connection pool occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/pool")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Show the ladder of a group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/rankings?" + listQuery().Encode())
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List the most recent matches of a group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/matches?" + listQuery().Encode())
	},
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <participant>",
	Short: "Enroll a participant in a group at the default rating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"group": {group}, "id": {args[0]}}
		if dryRun {
			q.Set("dry_run", "true")
		}
		return performRequest(http.MethodPost, host+"/participants?"+q.Encode(), nil, nil)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "POST a raw JSON body to the webhook listener, from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			body []byte
			err  error
		)
		if len(args) == 1 {
			body, err = os.ReadFile(args[0])
		} else {
			body, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		return postWebhook(body)
	},
}

var sayCmd = &cobra.Command{
	Use:     "say <text>",
	Short:   "Post a chat message event to the webhook listener",
	Example: `  ladder-cli say --group C1 --user U1 '!match <@U1> <@U2> 6 3'`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := messageEvent(group, user, eventTS, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return postWebhook(body)
	},
}

func listQuery() url.Values {
	q := url.Values{"group": {group}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// messageEvent wraps text in an Events API callback as a channel message.
func messageEvent(channel, user, ts, text string) ([]byte, error) {
	if ts == "" {
		now := time.Now()
		ts = fmt.Sprintf("%d.%06d", now.Unix(), now.Nanosecond()/1000)
	}
	return json.Marshal(map[string]any{
		"type":     "event_callback",
		"event_id": "Ev" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"event": map[string]any{
			"type":    "message",
			"channel": channel,
			"user":    user,
			"text":    text,
			"ts":      ts,
		},
	})
}

func postWebhook(body []byte) error {
	headers := map[string]string{"Content-Type": "application/json"}
	if secret != "" {
		headers["X-Shared-Secret-Token"] = secret
	}
	return performRequest(http.MethodPost, webhookURL, body, headers)
}

func performGetRequest(endpoint string) error {
	return performRequest(http.MethodGet, host+endpoint, nil, nil)
}

func performRequest(method, target string, body []byte, headers map[string]string) error {
	fmt.Printf("Making request to %s\n", target)

	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
