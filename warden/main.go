// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command warden is a client for wardend.  It uses subcommands:
//
//	workers             - list all worker types
//	status [<name> ...] - show status for the named workers (or all)
//	info <name>         - show more detailed worker info
//	log [<name>]        - show the log for one worker, or for everything
//	reload              - ask wardend to reload its configuration
//	shutdown            - ask wardend to stop its workers and exit
//	ui                  - full screen interface (the default)
//
// The server address and credentials are given with --addr and
// --user user:pass, or as WARDEN_ADDR and WARDEN_USER.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gdamore/warden"
	"github.com/gdamore/warden/rest"
	"github.com/gdamore/warden/warden/ui"
	"github.com/gdamore/warden/warden/util"
)

var rootCmd = &cobra.Command{
	Use:          "warden",
	Short:        "Inspect and control a wardend supervisor",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runUI,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("addr", "http://127.0.0.1:8321", "wardend address")
	pf.String("user", "", "user:pass authentication")
	pf.Duration("timeout", 10*time.Second, "request timeout")

	viper.SetEnvPrefix("WARDEN")
	viper.AutomaticEnv()
	if e := viper.BindPFlags(pf); e != nil {
		panic(e)
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "workers",
			Short: "List all worker types",
			Args:  cobra.NoArgs,
			RunE:  runWorkers,
		},
		&cobra.Command{
			Use:   "status [name...]",
			Short: "Show status for the named workers, or all of them",
			RunE:  runStatus,
		},
		&cobra.Command{
			Use:   "info <name>",
			Short: "Show detailed information for a worker",
			Args:  cobra.ExactArgs(1),
			RunE:  runInfo,
		},
		&cobra.Command{
			Use:   "log [name]",
			Short: "Show the log for a worker, or the consolidated log",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runLog,
		},
		&cobra.Command{
			Use:   "reload",
			Short: "Reload the supervisor configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := requestContext()
				defer cancel()
				return newClient().Reload(ctx)
			},
		},
		&cobra.Command{
			Use:   "shutdown",
			Short: "Stop all workers and the supervisor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := requestContext()
				defer cancel()
				return newClient().Shutdown(ctx)
			},
		},
		&cobra.Command{
			Use:   "ui",
			Short: "Run the full screen interface",
			Args:  cobra.NoArgs,
			RunE:  runUI,
		},
	)
}

func newClient() *rest.Client {
	client := rest.NewClient(nil, viper.GetString("addr"))
	if auth := viper.GetString("user"); auth != "" {
		user, pass, found := strings.Cut(auth, ":")
		if !found {
			log.Fatalf("Bad user:pass supplied")
		}
		client.SetAuth(user, pass)
	}
	return client
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		viper.GetDuration("timeout"))
}

func showStatus(infos []*warden.WorkerInfo) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "State", "Uptime", "Detail")
	for _, w := range infos {
		table.Append([]string{w.Name, util.Status(w),
			util.FormatDuration(util.Uptime(w)), w.Status})
	}
	table.Render()
}

func runWorkers(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	ws, e := newClient().Workers(ctx)
	if e != nil {
		return e
	}
	names := make([]string, 0, len(ws))
	for _, w := range ws {
		names = append(names, w.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	client := newClient()

	infos := []*warden.WorkerInfo{}
	if len(args) == 0 {
		ws, e := client.Workers(ctx)
		if e != nil {
			return e
		}
		for i := range ws {
			infos = append(infos, &ws[i])
		}
	}
	for _, n := range args {
		info, e := client.Worker(ctx, n)
		if e == nil {
			infos = append(infos, info)
		} else {
			log.Printf("Failed: %s: %v", n, e)
		}
	}
	util.SortWorkers(infos)
	showStatus(infos)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	w, e := newClient().Worker(ctx, args[0])
	if e != nil {
		return e
	}
	fmt.Printf("Name:      %s\n", w.Name)
	fmt.Printf("Id:        %s\n", w.Id)
	fmt.Printf("Status:    %s\n", util.Status(w))
	fmt.Printf("Uptime:    %s\n", util.FormatDuration(util.Uptime(w)))
	fmt.Printf("Stoppable: %v\n", w.Stoppable)
	fmt.Printf("Starts:    %d\n", w.Starts)
	fmt.Printf("Failures:  %d\n", w.Failures)
	fmt.Printf("Restarts:  %d\n", w.Restarts)
	fmt.Printf("Detail:    %s\n", w.Status)
	fmt.Printf("Since:     %v\n", time.Since(w.TimeStamp).Round(time.Second))
	if w.LastError != "" {
		fmt.Printf("Error:     %s\n", w.LastError)
	}
	if w.ExitError != "" {
		fmt.Printf("Exited:    %s\n", w.ExitError)
	}
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	li, e := newClient().Log(ctx, name)
	if e != nil {
		return e
	}
	for _, r := range li.Records {
		if r.Source != "" && name == "" {
			fmt.Printf("%s [%s] %s\n", r.Time.Format(time.StampMilli),
				r.Source, r.Text)
		} else {
			fmt.Printf("%s %s\n", r.Time.Format(time.StampMilli), r.Text)
		}
	}
	return nil
}

func runUI(cmd *cobra.Command, args []string) error {
	var logger *log.Logger
	if name := os.Getenv("WARDEN_UI_LOG"); name != "" {
		f, e := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if e != nil {
			return e
		}
		defer f.Close()
		logger = log.New(f, "", log.LstdFlags)
	}
	app := ui.NewApp(newClient(), viper.GetString("addr"))
	app.SetLogger(logger)
	return app.Run()
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
