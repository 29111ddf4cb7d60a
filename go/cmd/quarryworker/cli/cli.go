/*
Copyright 2024 The Quarry Authors.

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

// Package cli implements the quarryworker command: the worker process
// that accepts plan fragments from the coordinator, lowers them and
// exposes runtime metrics.
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quarrydb/quarry/go/quarry/connector"
	"github.com/quarrydb/quarry/go/quarry/log"
	"github.com/quarrydb/quarry/go/quarry/serverstats"
)

var (
	configFile string

	listenAddr      = ":8080"
	shuffleName     = ""
	shuffleInfo     = ""
	cacheTTLSeconds = 300
	hotInterval     = 2 * time.Second
	cacheInterval   = 60 * time.Second

	Main = &cobra.Command{
		Use:   "quarryworker",
		Short: "quarryworker executes plan fragments shipped by the Quarry coordinator.",
		Example: `quarryworker \
	--listen-addr :8080 \
	--shuffle-name local \
	--shuffle-info '{"rootPath":"/var/quarry/shuffle"}' \
	--alsologtostderr`,
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE:    run,
	}
)

func init() {
	log.RegisterFlags(Main.PersistentFlags())

	Main.Flags().StringVar(&configFile, "config", "", "config file overriding flag defaults")
	Main.Flags().StringVar(&listenAddr, "listen-addr", listenAddr, "address the worker HTTP server listens on")
	Main.Flags().StringVar(&shuffleName, "shuffle-name", shuffleName, "external shuffle service for batch execution; empty selects interactive execution")
	Main.Flags().StringVar(&shuffleInfo, "shuffle-info", shuffleInfo, "serialized shuffle descriptor handed to the shuffle service")
	Main.Flags().IntVar(&cacheTTLSeconds, "file-handle-cache-ttl", cacheTTLSeconds, "seconds an idle cached file handle stays open")
	Main.Flags().DurationVar(&hotInterval, "stats-interval", hotInterval, "sampling interval for execution counters")
	Main.Flags().DurationVar(&cacheInterval, "cache-stats-interval", cacheInterval, "sampling interval for cache counters")
}

// loadConfig layers an optional config file under the flag values: flags
// set explicitly on the command line win.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if configFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) || err != nil {
			return
		}
		err = f.Value.Set(v.GetString(f.Name))
	})
	return err
}

func run(cmd *cobra.Command, _ []string) error {
	storage := connector.NewStorageConnector("warehouse", cacheTTLSeconds)
	if err := connector.Register(storage); err != nil {
		return err
	}
	if err := connector.Register(connector.NewSynthConnector("synth")); err != nil {
		return err
	}

	server := newServer(shuffleName, shuffleInfo)

	stats := serverstats.NewManager(prometheus.DefaultRegisterer, server,
		map[string]*connector.FileHandleCache{storage.ID(): storage.FileHandleCache()},
		hotInterval, cacheInterval)
	stats.Start()
	defer stats.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/v1/info", server.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/v1/task/{taskID}/plan", server.handlePlan).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{Addr: listenAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("quarryworker %s listening on %s", server.workerID, listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infof("quarryworker shutting down on %v", sig)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
