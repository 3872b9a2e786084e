// Package config provides configuration parsing for fluxreg projects.
//
// The configuration is stored in fluxreg.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "manifest": "fluxreg.hcl",
//	  "dispatcher": {
//	    "mode": "async",
//	    "queueSize": 256
//	  },
//	  "actions": {
//	    "policy": "exclusive"
//	  },
//	  "snapshot": {
//	    "backend": "s3",
//	    "bucket": "my-bucket",
//	    "prefix": "fluxreg/",
//	    "region": "eu-west-1",
//	    "ttl": "24h"
//	  },
//	  "metrics": {"enabled": true, "namespace": "myapp"},
//	  "tracing": {"enabled": true},
//	  "log": {"level": "debug"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Backend:", cfg.Snapshot.Backend)
package config
