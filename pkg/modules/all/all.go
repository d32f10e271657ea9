// Package all registers every built in module through side effect imports.
// Import it from binaries that should have the full module set available.
package all

import (
	_ "github.com/recondor/recondor/pkg/modules/cloudbuckets"
	_ "github.com/recondor/recondor/pkg/modules/github"
	_ "github.com/recondor/recondor/pkg/modules/httpprobe"
	_ "github.com/recondor/recondor/pkg/modules/portscan"
	_ "github.com/recondor/recondor/pkg/modules/screenshot"
	_ "github.com/recondor/recondor/pkg/modules/shodan"
	_ "github.com/recondor/recondor/pkg/modules/subdomains"
)
