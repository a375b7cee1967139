// Package health reports whether the storefront client can reach its
// dependencies.
//
// A Checker reports one component's Status: Healthy, Degraded, or Unhealthy.
// StorageCheck pings the durable store and APICheck asks the backend for its
// product list. An Aggregator runs checkers concurrently under one deadline
// and folds their results into a Report:
//
//	agg := health.NewAggregator()
//	agg.Register(health.StorageCheck(db))
//	agg.Register(health.APICheck(client))
//
//	report := agg.Run(ctx)
//	if report.Status != health.StatusHealthy {
//	    fmt.Println(report)
//	}
package health
