// Package config loads and validates the deployrc workspace configuration.
//
//	            +----------------+
//	            | DeployrcConfig |
//	            +-------+--------+
//	                    |
//	   +--------+-------+-------+--------+
//	   |        |               |        |
//	+--+--+  +--+--+        +---+--+  +--+---+
//	| YAML|  | JSON|        |  HCL |  | TOML |
//	+-----+  +-----+        +------+  +------+
//
// 🎯 Purpose:
// - Reads the workspace config (.deployrc, deployrc.yaml, deployrc.json, deployrc.hcl, deployrc.toml)
// - Rejects unknown keys in every format
// - Validates targets, mappings, operations and packages
// - Converts target declarations into runtime targets
//
// 🔄 Flow:
// 1. FindConfig picks the config file of a workspace
// 2. LoadConfig parses it by extension (.deployrc tries YAML, then HCL)
// 3. Validate checks names, types and glob patterns
// 4. ConfiguredTargets hands out *target.Target values with IDs derived from the target names
//
// 🔍 Example (YAML):
//
//	ignore:
//	  - "**/.git/**"
//	targets:
//	  - name: production
//	    type: sftp
//	    group: web
//	    options:
//	      host: example.com
//	      user: deploy
//	      key_file: ~/.ssh/id_ed25519
//	      dir: /var/www
//	    mappings:
//	      - source: "public"
//	        destination: "/"
//	    before_deploy:
//	      - type: exec
//	        options:
//	          command: make build
//	packages:
//	  - name: site
//	    files: ["public/**"]
//	    targets: [production]
//
// 🔍 Example (HCL):
//
//	target "production" {
//	  type    = "sftp"
//	  options = {
//	    host     = "example.com"
//	    user     = "deploy"
//	    password = env.DEPLOY_PASSWORD
//	  }
//
//	  deployed {
//	    type    = "http"
//	    options = { url = "https://example.com/hooks/deployed" }
//	  }
//	}
package config
