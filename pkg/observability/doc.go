/*
Package observability turns process-instance lifecycle hooks into Prometheus
metrics and structured log lines.

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
	mgr, _ := session.New(defs, env, cfg, session.WithLifecycleHooks(hooks))
	http.Handle("/metrics", observability.Handler(reg))
*/
package observability
