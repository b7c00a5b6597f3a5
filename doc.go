// Package shocktrack post-processes numbered collapsing-star simulation
// snapshots and tracks the proto-neutron-star core and the shock front over
// time.
//
// A fixed pool of workers splits the snapshots of a dataset into contiguous
// intervals. Every worker detects the core radius (last cell above a density
// threshold) and the shock radius (velocity minimum beyond a bump offset) for
// each snapshot of its interval. The coordinator (rank 0) gathers the partial
// series, merges them into one time series and writes the evolution file.
//
// # Quick Start
//
// In-process pool over channels:
//
//	import (
//	    "github.com/arloliu/shocktrack"
//	    "github.com/arloliu/shocktrack/source"
//	)
//
//	cfg := shocktrack.DefaultConfig()
//	cfg.PoolSize = 4
//	cfg.Source.BasePath = "/scratch/runs"
//
//	comms, _ := shocktrack.NewLocalPool(cfg.PoolSize)
//	reader := source.NewDirectory(cfg.Source.BasePath, cfg.Source.BaseFile, nil)
//
//	for _, comm := range comms {
//	    go func() {
//	        runner, _ := shocktrack.NewRunner(&cfg, comm, reader)
//	        _ = runner.Run(ctx, []string{"s12.swbj15.horo.3d"})
//	    }()
//	}
//
// Separate processes coordinate through JetStream KV buckets instead; see
// the shocktrack command.
//
// # Architecture
//
// Every rank walks the same state machine per dataset:
//
//	Idle → Planning → Detecting → Barrier → Gathering → Reducing → Barrier → Done
//
// Only the coordinator reduces. A planning failure on the coordinator is
// broadcast to every rank so the pool aborts the dataset together.
//
// # Corrections
//
// Known misdetections are corrected per dataset with Config.Overrides. Bump
// keys are 1-based snapshot numbers:
//
//	overrides:
//	  s12:
//	    bumps:
//	      140: 300
package shocktrack
