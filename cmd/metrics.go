// Copyright 2026 The Blockfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockfs/blockfs/internal/logger"
)

// maybeServeMetrics starts a Prometheus /metrics endpoint in the
// background if MountConfig.MetricsAddr is set, returning immediately
// either way.
func maybeServeMetrics() {
	addr := MountConfig.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("metrics server on %s stopped: %v", addr, err)
		}
	}()
	logger.Infof("serving metrics on %s", addr)
}
