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

// Command wardend keeps the commands listed in its configuration file
// running, and serves a REST API for inspecting and controlling them.
//
// The configuration file is Hjson (or JSON, YAML or TOML, by extension).
// It is looked for at the path given with --config, then at
// ./config.hjson, then at /etc/warden/config.hjson:
//
//	{
//	    interval: 1s
//	    stopTimeout: 30s
//	    workers: [
//	        {
//	            name: web
//	            command: [ "/usr/bin/webd", "-p", "8080" ]
//	            stopSignal: INT
//	        }
//	    ]
//	}
//
// SIGHUP reloads the file.  SIGINT or SIGTERM stops every worker, in the
// order they are listed, and exits.  Every flag may also be set in the
// environment, as WARDEN_<FLAG> (for example WARDEN_MAX_CONNS).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gdamore/warden"
	"github.com/gdamore/warden/config"
	"github.com/gdamore/warden/rest"
)

var rootCmd = &cobra.Command{
	Use:          "wardend",
	Short:        "Keep a set of commands running",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.String("config", "", "configuration file (default ./config.hjson, then /etc/warden/config.hjson)")
	f.String("addr", "127.0.0.1:8321", "REST listen address, empty to disable")
	f.Duration("interval", warden.DefaultInterval, "time between checks on workers")
	f.Duration("stop-timeout", 0, "longest wait for each worker at shutdown, 0 waits forever")
	f.String("name", "wardend", "supervisor name")
	f.StringSlice("auth", nil, "user:bcrypthash allowed to use the REST API (repeatable)")
	f.Int("max-conns", 16, "maximum concurrent REST connections")
	f.String("log-file", "", "also append log messages to this file")

	viper.SetEnvPrefix("WARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if e := viper.BindPFlags(f); e != nil {
		panic(e)
	}
}

func openLogger() (*log.Logger, io.Closer, error) {
	name := viper.GetString("log-file")
	if name == "" {
		return log.New(os.Stderr, "", log.LstdFlags), nil, nil
	}
	f, e := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if e != nil {
		return nil, nil, e
	}
	w := io.MultiWriter(os.Stderr, f)
	return log.New(w, "", log.LstdFlags), f, nil
}

// loadWorkers builds the registry from the configuration's workers
// section.  No configuration file means no workers, which is allowed.
func loadWorkers(src config.Loader, logger *log.Logger) (*warden.Registry, []warden.CommandManifest, error) {
	cfg, e := src.Load()
	if errors.Is(e, config.ErrNotFound) {
		logger.Printf("No configuration file found (%v)", src)
		cfg = map[string]interface{}{}
	} else if e != nil {
		return nil, nil, e
	}
	ms, e := warden.CommandManifests(cfg)
	if e != nil {
		return nil, nil, e
	}
	reg := &warden.Registry{}
	for _, m := range ms {
		wt, e := warden.NewCommandType(m)
		if e != nil {
			return nil, nil, e
		}
		if e := reg.Register(wt); e != nil {
			return nil, nil, e
		}
	}
	return reg, ms, nil
}

func addUsers(h *rest.Handler, entries []string) error {
	for _, a := range entries {
		user, hash, found := strings.Cut(a, ":")
		if !found {
			return fmt.Errorf("bad --auth %q: want user:bcrypthash", a)
		}
		if e := h.AddUser(user, hash); e != nil {
			return fmt.Errorf("bad --auth for %s: %w", user, e)
		}
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	logger, lf, e := openLogger()
	if e != nil {
		return e
	}
	if lf != nil {
		defer lf.Close()
	}

	paths := config.DefaultPaths
	if p := viper.GetString("config"); p != "" {
		paths = append([]string{p}, paths...)
	}
	src := config.NewSource(paths...)

	reg, manifests, e := loadWorkers(src, logger)
	if e != nil {
		return fmt.Errorf("configuration: %w", e)
	}

	st := warden.NewState()
	router := warden.NewSignalRouter(st)
	router.Install()
	defer router.Stop()

	var s *warden.Supervisor
	s = warden.NewSupervisor(viper.GetString("name"), reg,
		warden.WithState(st),
		warden.WithConfig(src),
		warden.WithInterval(viper.GetDuration("interval")),
		warden.WithStopTimeout(viper.GetDuration("stop-timeout")),
		warden.OnReload(func(cfg map[string]interface{}) {
			ms, e := warden.CommandManifests(cfg)
			if e != nil {
				s.Logger("").Printf("Ignoring bad workers section: %v", e)
			} else if !reflect.DeepEqual(ms, manifests) {
				s.Logger("").Printf("Worker changes take effect on restart")
			}
		}))
	s.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan struct{})
	if addr := viper.GetString("addr"); addr != "" {
		h := rest.NewHandler(s)
		if e := addUsers(h, viper.GetStringSlice("auth")); e != nil {
			return e
		}
		l, e := rest.Listen(addr, viper.GetInt("max-conns"))
		if e != nil {
			return e
		}
		logger.Printf("Serving REST API on %s", l.Addr())
		go func() {
			defer close(served)
			if e := rest.Serve(ctx, l, h); e != nil {
				logger.Printf("REST API failed: %v", e)
			}
		}()
	} else {
		close(served)
	}

	e = s.Run(ctx)
	cancel()
	<-served
	return e
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
